package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/woozymasta/omp-launcher/internal/geoip"
	"github.com/woozymasta/omp-launcher/internal/launcher"
	"github.com/woozymasta/omp-launcher/internal/query"
	"github.com/woozymasta/omp-launcher/internal/storage"
)

// Querier answers aggregate server queries. *query.Client implements it.
type Querier interface {
	Query(ctx context.Context, ep query.Endpoint, cats query.Categories) query.Result
}

// Server holds the dependencies, configuration, and runtime state required
// to handle RPC requests, game launches and history recording.
type Server struct {
	// query answers the server browser queries.
	query Querier

	// launcher spawns the game and injects the client libraries.
	launcher launcher.GameLauncher

	// storage provides access to the key-value store and the server history.
	storage *storage.Repository

	// geoip resolves server addresses to country codes for the history.
	// It can be nil if the GeoIP database is not initialized.
	geoip geoip.Lookup

	// allowedOrigins is a set of hashed Origin header values (using xxhash)
	// allowed to call the RPC from a browser context.
	allowedOrigins map[uint64]struct{}

	// rpc and syncRPC map method names to their handlers.
	rpc     map[string]http.HandlerFunc
	syncRPC map[string]http.HandlerFunc

	// launches feeds the single launch worker. Launch and injection never run
	// on a request goroutine.
	launches chan launchJob

	// history is a buffered channel passing successful info answers to the
	// history workers.
	history chan historyJob

	// ctx is cancelled on StopWorkers and aborts a running injection.
	ctx    context.Context
	cancel context.CancelFunc

	// shutdown is a signal channel used to broadcast a stop signal to all background
	// goroutines during a graceful shutdown.
	shutdown chan struct{}

	// seenCache tracks recently recorded servers to skip redundant history writes.
	seenCache sync.Map

	// storageMu serializes the sync_rpc methods.
	storageMu sync.Mutex

	// wg is used to wait for all background workers to finish processing
	// before the server shuts down completely.
	wg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// historyWorkers is the number of goroutines draining the history queue.
	historyWorkers int

	// hardLimitCount is the maximum number of requests allowed per client
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	// historyRefresh is the duration for which a server is not recorded again.
	historyRefresh time.Duration

	// pruneAge is the idle age after which query throttle entries are dropped.
	pruneAge time.Duration
}

// launchJob is one queued game launch. The worker reports the outcome on done.
type launchJob struct {
	done chan error
	req  launcher.Request
}

// historyJob is one successful info answer to record in the server history.
type historyJob struct {
	seen time.Time
	ep   query.Endpoint
	info query.Info
	// ping is negative when the query did not measure it.
	ping int
}
