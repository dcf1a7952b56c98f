package launcher

import "strconv"

// BuildArgs returns the game command line: -c -n <name> -h <host> -p <port>,
// followed by -z <password> when a password is set.
func BuildArgs(req Request) []string {
	args := []string{
		"-c",
		"-n", req.Name,
		"-h", req.Host,
		"-p", strconv.Itoa(int(req.Port)),
	}
	if req.Password != "" {
		args = append(args, "-z", req.Password)
	}

	return args
}
