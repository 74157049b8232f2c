// acdprobed watches one or more IPv4 addresses for ARP conflicts
// (RFC 5227) and raises bind/conflict/stop notifications over an event
// bus, script hooks, webhooks, and an HTTP status API.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ipv4acd/ipv4acd/internal/acd"
	"github.com/ipv4acd/ipv4acd/internal/api"
	"github.com/ipv4acd/ipv4acd/internal/config"
	"github.com/ipv4acd/ipv4acd/internal/events"
	"github.com/ipv4acd/ipv4acd/internal/logging"
	"github.com/ipv4acd/ipv4acd/internal/metrics"
	"github.com/ipv4acd/ipv4acd/internal/reactor"
)

func main() {
	configPath := flag.String("config", "/etc/acdprobed/config.toml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, os.Stdout)
	logger.Info("acdprobed starting", "config", *configPath, "instances", len(cfg.Instances))

	metrics.ServerStartTime.Set(float64(time.Now().Unix()))
	metrics.ServerInfo.WithLabelValues("dev").Set(1)

	bus := events.NewBus(cfg.Hooks.EventBufferSize, logger)
	go bus.Start()

	dispatcher := events.NewDispatcher(bus, logger, cfg.Hooks.ScriptConcurrency, config.DefaultWebhookTimeout)
	for _, s := range cfg.Hooks.Scripts {
		sc, err := s.ToEventsConfig()
		if err != nil {
			logger.Error("invalid script hook", "name", s.Name, "error", err)
			os.Exit(1)
		}
		dispatcher.AddScript(sc)
	}
	for _, w := range cfg.Hooks.Webhooks {
		wc, err := w.ToEventsConfig()
		if err != nil {
			logger.Error("invalid webhook hook", "name", w.Name, "error", err)
			os.Exit(1)
		}
		dispatcher.AddWebhook(wc)
	}
	go dispatcher.Start()

	rx, err := reactor.NewEpoll(logger)
	if err != nil {
		logger.Error("failed to create reactor", "error", err)
		os.Exit(1)
	}
	defer rx.Close()

	instances, err := startInstances(cfg, rx, bus, logger)
	if err != nil {
		logger.Error("failed to start instances", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiInstances := make([]*api.Instance, 0, len(instances))
		for _, inst := range instances {
			apiInstances = append(apiInstances, &api.Instance{
				Address:   inst.address,
				Interface: inst.ifaceName,
				Detector:  inst.detector,
			})
		}
		apiServer = api.NewServer(cfg.API, apiInstances, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("API server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	for _, inst := range instances {
		inst.detector.Stop()
		inst.detector.Unref()
	}

	if apiServer != nil {
		sdCtx, sdCancel := context.WithTimeout(context.Background(), 10*time.Second)
		apiServer.Stop(sdCtx)
		sdCancel()
	}

	dispatcher.Stop()
	bus.Stop()
	logger.Info("acdprobed stopped")
}

// instance bundles a running acd.Detector with the identity info the
// API and event payloads need.
type instance struct {
	ifaceName string
	address   net.IP
	detector  *acd.Detector
}

func startInstances(cfg *config.Config, rx *reactor.Epoll, bus *events.Bus, logger *slog.Logger) ([]*instance, error) {
	instances := make([]*instance, 0, len(cfg.Instances))

	for _, ic := range cfg.Instances {
		iface, err := net.InterfaceByName(ic.Interface)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", ic.Address, err)
		}

		mac := iface.HardwareAddr
		if ic.MAC != "" {
			mac, err = net.ParseMAC(ic.MAC)
			if err != nil {
				return nil, fmt.Errorf("instance %s: %w", ic.Address, err)
			}
		}

		ip := net.ParseIP(ic.Address).To4()
		addr := binary.BigEndian.Uint32(ip)

		d := acd.New(logger.With("instance", ic.Address, "interface", ic.Interface))
		if err := d.SetIfindex(iface.Index); err != nil {
			return nil, fmt.Errorf("instance %s: SetIfindex: %w", ic.Address, err)
		}
		if err := d.SetMAC(mac); err != nil {
			return nil, fmt.Errorf("instance %s: SetMAC: %w", ic.Address, err)
		}
		if err := d.SetAddress(addr); err != nil {
			return nil, fmt.Errorf("instance %s: SetAddress: %w", ic.Address, err)
		}
		if err := d.AttachEvent(rx, ic.AcdPriority()); err != nil {
			return nil, fmt.Errorf("instance %s: AttachEvent: %w", ic.Address, err)
		}

		inst := &instance{ifaceName: ic.Interface, address: ip, detector: d}
		d.SetCallback(makeCallback(inst, bus, logger), nil)
		d.SetObserver(&metricsObserver{inst: inst, bus: bus})

		if err := d.Start(); err != nil {
			return nil, fmt.Errorf("instance %s: Start: %w", ic.Address, err)
		}

		instances = append(instances, inst)
	}

	return instances, nil
}

// metricsObserver adapts acd's diagnostic Observer hooks into
// Prometheus counters and a RATE_LIMITED bus event. Its methods run
// synchronously while the detector's mutex is held (acd.Observer's
// contract), so they must never call back into the detector — in
// particular never call inst.detector.State() from here.
type metricsObserver struct {
	inst *instance
	bus  *events.Bus
}

func (o *metricsObserver) ProbeSent(address uint32) {
	metrics.ProbesSent.WithLabelValues(o.inst.address.String()).Inc()
}

func (o *metricsObserver) AnnounceSent(address uint32) {
	metrics.AnnouncementsSent.WithLabelValues(o.inst.address.String()).Inc()
}

// RateLimited fires from within the STARTED timer handler, which has
// already set the instance's state to WAITING_PROBE before checking
// the conflict count (machine.go's enterWaitingProbeLocked).
func (o *metricsObserver) RateLimited(address uint32) {
	metrics.RateLimitActivations.WithLabelValues(o.inst.address.String()).Inc()

	evt := events.Event{
		Type:      events.EventRateLimited,
		Timestamp: time.Now(),
		Instance: &events.InstanceData{
			Address:   o.inst.address,
			Interface: o.inst.ifaceName,
			State:     "WAITING_PROBE",
		},
	}
	o.bus.Publish(evt)
}

func (o *metricsObserver) Bound(address uint32, latency time.Duration) {
	metrics.BindLatency.WithLabelValues(o.inst.address.String()).Observe(latency.Seconds())
}

// makeCallback adapts an acd.Callback into an events.Event published on
// the bus. It runs synchronously on the reactor goroutine, so it never
// blocks on anything slower than a channel send.
func makeCallback(inst *instance, bus *events.Bus, logger *slog.Logger) acd.Callback {
	return func(kind acd.EventKind, address uint32, userdata any) {
		state := inst.detector.State().String()
		data := &events.InstanceData{
			Address:   inst.address,
			Interface: inst.ifaceName,
			State:     state,
		}

		evt := events.Event{Timestamp: time.Now(), Instance: data}

		for s := acd.StateInit; s <= acd.StateRunning; s++ {
			metrics.InstanceState.WithLabelValues(inst.address.String(), s.String()).Set(0)
		}

		switch kind {
		case acd.EventBind:
			evt.Type = events.EventBind
			metrics.Binds.WithLabelValues(inst.address.String()).Inc()
			metrics.InstanceState.WithLabelValues(inst.address.String(), state).Set(1)
		case acd.EventConflict:
			evt.Type = events.EventConflict
			evt.Conflict = &events.ConflictData{
				ConflictCount: inst.detector.ConflictCount(),
				Defended:      false,
			}
			metrics.ConflictsDetected.WithLabelValues(inst.address.String(), "yielded").Inc()
			metrics.InstanceState.WithLabelValues(inst.address.String(), state).Set(1)
		case acd.EventStop:
			evt.Type = events.EventStop
			metrics.InstanceState.WithLabelValues(inst.address.String(), state).Set(1)
		default:
			logger.Warn("unknown acd event kind", "kind", kind)
			return
		}

		bus.Publish(evt)
	}
}
