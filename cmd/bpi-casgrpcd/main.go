// Command bpi-casgrpcd serves a CAS backend over gRPC for mesh artifacts.
//
// Any registered daemon backend can sit behind it (localfs, ipfs); the
// optional metrics listener exposes Prometheus counters for RPC traffic
// and stored bytes.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"bpimesh.org/mesh/storage/casregistry"
	"bpimesh.org/mesh/storage/grpccas"

	_ "bpimesh.org/mesh/storage/ipfs"
	_ "bpimesh.org/mesh/storage/localfs"
)

// maxMessageSize bounds artifact payloads on the wire. Checkpoints are
// exported as TARs through the CLI, so single blocks stay well below this.
const maxMessageSize = 64 << 20

var (
	rpcTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bpi_casgrpcd_rpc_total",
		Help: "CAS RPCs by method and status code.",
	}, []string{"method", "code"})
	storedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bpi_casgrpcd_stored_bytes_total",
		Help: "Bytes accepted by Put.",
	})
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("bpi-casgrpcd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "CAS backend name")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus metrics listen address (empty disables)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	_ = fs.Parse(args)
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	log, err := buildLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	cas, closeFn, err := casregistry.Open(*backend, casregistry.UsageDaemon)
	if err != nil {
		log.Error("open backend", zap.String("backend", *backend), zap.Error(err))
		return 2
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.Error("listen", zap.String("addr", *listen), zap.Error(err))
		return 1
	}
	defer lis.Close()

	prometheus.MustRegister(rpcTotal, storedBytes)
	var metricsSrv *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			log.Info("metrics listening", zap.String("addr", *metricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server", zap.Error(err))
			}
		}()
	}

	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
		grpc.UnaryInterceptor(metricsInterceptor(log)),
	)
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas})

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()
	log.Info("listening",
		zap.String("addr", lis.Addr().String()),
		zap.String("backend", *backend),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		s.GracefulStop()
	case err := <-errCh:
		if err != nil {
			log.Error("serve", zap.Error(err))
			return 1
		}
	}

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(ctx)
	}
	return 0
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid -log-level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// metricsInterceptor counts RPCs by method and gRPC status code, and tracks
// bytes accepted by Put.
func metricsInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		code := status.Code(err)
		rpcTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
		if err == nil {
			if in, ok := req.(*wrapperspb.BytesValue); ok {
				storedBytes.Add(float64(len(in.Value)))
			}
		} else {
			log.Debug("rpc failed",
				zap.String("method", info.FullMethod),
				zap.String("code", code.String()),
				zap.Error(err),
			)
		}
		return resp, err
	}
}
