package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openx6100/catd/internal/bus"
	"github.com/openx6100/catd/internal/cat"
	"github.com/openx6100/catd/internal/config"
	"github.com/openx6100/catd/internal/domain"
	"github.com/openx6100/catd/internal/logging"
	"github.com/openx6100/catd/internal/persistence"
	"github.com/openx6100/catd/internal/platform"
	"github.com/openx6100/catd/internal/radio"
	"github.com/openx6100/catd/internal/transport"
)

const (
	stateFlushInterval = 3 * time.Second
	adifSweepInterval  = 5 * time.Minute
)

type Runtime struct {
	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config *config.Config

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	DB         *sql.DB

	Params      *persistence.ParamsStore
	QSOLog      *persistence.QSOLogStore
	WriterQueue *persistence.WriterQueue

	Bridge        *radio.Bridge
	SerialService *cat.Service
	TCPService    *cat.Service

	lock           platform.ProcessLock
	stopProjection func()
	closeOnce      sync.Once

	linkMu     sync.RWMutex
	linkStatus map[string]domain.LinkStatus
}

// Initialize brings the whole daemon up: config, logging, pidfile,
// database, in-memory radio state and the CAT sessions. A serial port
// that cannot be opened is logged and skipped; the daemon keeps running
// so the TCP session and log import still work.
func Initialize(parent context.Context, configFile string) (*Runtime, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	paths, err := ResolvePaths(cfg.DB.Path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:        ctx,
		cancel:     cancel,
		Paths:      paths,
		Config:     cfg,
		linkStatus: make(map[string]domain.LinkStatus),
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting catd", "version", BuildVersion(), "build_date", BuildDateYMD())

	lock, err := platform.AcquirePidLock(paths.PidFile)
	switch {
	case errors.Is(err, platform.ErrLockUnsupported):
		slog.Warn("pidfile locking unsupported on this platform")
	case err != nil:
		_ = rt.Close()
		return nil, fmt.Errorf("acquire pidfile %s: %w", paths.PidFile, err)
	default:
		rt.lock = lock
	}

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.DB = db
	rt.Params = persistence.NewParamsStore(db)
	rt.QSOLog = persistence.NewQSOLogStore(db)

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	linkSub := b.Subscribe(bus.TopicLinkStatus)
	go rt.captureLinkStatus(ctx, linkSub)
	rt.startFrameTrace(ctx, logMgr.Logger("trace"))

	writerQueue := persistence.NewWriterQueue(logMgr.Logger("persistence"), 512)
	writerQueue.Start(ctx)
	rt.WriterQueue = writerQueue

	bridge := radio.NewBridge(logMgr.Logger("radio"), b)
	if err := bridge.Load(ctx, rt.Params); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("load radio state: %w", err)
	}
	rt.Bridge = bridge
	rt.stopProjection = radio.StartStateProjection(ctx, b, writerQueue, rt.Params, stateFlushInterval)

	var router transport.Router = transport.NopRouter{}
	if cfg.GPIO.RoutePath != "" {
		router = transport.SysfsRouter{
			Logger: logMgr.Logger("transport"),
			Path:   cfg.GPIO.RoutePath,
			Value:  cfg.GPIO.RouteValue,
		}
	}
	if err := router.Route(); err != nil {
		slog.Error("route cat uart", "error", err)
	}

	dispatcher := cat.NewDispatcher(logMgr.Logger("cat"), bridge, cfg.LocalAddress())

	serial := transport.NewSerialTransport(cfg.Serial.Device, cfg.Serial.Baud)
	rt.SerialService = cat.NewService(logMgr.Logger("cat"), b, serial, dispatcher, cfg.PollInterval())
	if err := rt.SerialService.Start(ctx); err != nil {
		slog.Warn("continuing without serial cat", "device", cfg.Serial.Device)
	}

	if cfg.TCP.Enabled {
		tcp := transport.NewTCPServerTransport(logMgr.Logger("transport"), cfg.TCP.Listen)
		rt.TCPService = cat.NewService(logMgr.Logger("cat"), b, tcp, dispatcher, cfg.PollInterval())
		if err := rt.TCPService.Start(ctx); err != nil {
			slog.Warn("continuing without tcp cat", "listen", cfg.TCP.Listen)
		}
	}

	bridge.PublishState()

	if cfg.ADIF.SpoolDir != "" {
		importer := persistence.NewADIFImporter(logMgr.Logger("adif"), rt.QSOLog)
		go rt.runADIFSweeps(ctx, importer, cfg.ADIF.SpoolDir)
	}

	return rt, nil
}

func (r *Runtime) captureLinkStatus(ctx context.Context, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			status, ok := raw.(domain.LinkStatus)
			if !ok {
				continue
			}
			r.linkMu.Lock()
			r.linkStatus[status.TransportName] = status
			r.linkMu.Unlock()
		}
	}
}

// LinkStatus returns the last seen status of one transport.
func (r *Runtime) LinkStatus(transportName string) (domain.LinkStatus, bool) {
	r.linkMu.RLock()
	defer r.linkMu.RUnlock()
	status, ok := r.linkStatus[transportName]
	return status, ok
}

// startFrameTrace mirrors protocol traffic into the debug log.
func (r *Runtime) startFrameTrace(ctx context.Context, logger *slog.Logger) {
	inSub := r.Bus.Subscribe(bus.TopicRawFrameIn)
	outSub := r.Bus.Subscribe(bus.TopicRawFrameOut)

	// No unsubscribe on the way out: this goroutine outlives the point
	// where Close shuts the bus down, and the bus accepts no commands
	// after that. The shutdown itself closes both channels.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-inSub:
				if !ok {
					return
				}
				if f, ok := raw.(domain.RawFrame); ok {
					logger.Debug("frame", "dir", "in", "len", f.Len, "hex", f.Hex)
				}
			case raw, ok := <-outSub:
				if !ok {
					return
				}
				if f, ok := raw.(domain.RawFrame); ok {
					logger.Debug("frame", "dir", "out", "len", f.Len, "hex", f.Hex)
				}
			}
		}
	}()
}

// runADIFSweeps imports the spool right away and then keeps polling it,
// so logs dropped by digital-mode software while the daemon runs are
// picked up too.
func (r *Runtime) runADIFSweeps(ctx context.Context, importer *persistence.ADIFImporter, dir string) {
	importer.Sweep(ctx, dir)

	ticker := time.NewTicker(adifSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			importer.Sweep(ctx, dir)
		}
	}
}

// Close tears the runtime down in dependency order: in-flight state
// events are delivered, the projection flushes them to the write
// queue, the queue drains into SQLite, and only then do the bus and
// the database go away. Safe to call more than once.
func (r *Runtime) Close() error {
	r.closeOnce.Do(r.doClose)
	return nil
}

func (r *Runtime) doClose() {
	if r.Bus != nil {
		r.Bus.Sync()
	}
	if r.stopProjection != nil {
		r.stopProjection()
	}
	if r.WriterQueue != nil {
		r.WriterQueue.Close()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.DB != nil {
		_ = r.DB.Close()
	}
	if r.lock != nil {
		_ = r.lock.Release()
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}
}
