package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/Ryan4n6/MASS-Trap/pkg/arming"
	"github.com/Ryan4n6/MASS-Trap/pkg/clock"
	"github.com/Ryan4n6/MASS-Trap/pkg/config"
	"github.com/Ryan4n6/MASS-Trap/pkg/discovery"
	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
	"github.com/Ryan4n6/MASS-Trap/pkg/node"
	"github.com/Ryan4n6/MASS-Trap/pkg/offsetsync"
	"github.com/Ryan4n6/MASS-Trap/pkg/peers"
	"github.com/Ryan4n6/MASS-Trap/pkg/race"
	"github.com/Ryan4n6/MASS-Trap/pkg/radio"
	"github.com/Ryan4n6/MASS-Trap/pkg/sink"
	"github.com/Ryan4n6/MASS-Trap/pkg/speedtrap"
	"github.com/Ryan4n6/MASS-Trap/pkg/storage"
	"github.com/Ryan4n6/MASS-Trap/pkg/telemetry"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config.json")
	httpAddr := flag.String("http", "", "serve /api/state on this address (empty disables)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Msg("config load fell back to defaults")
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	deviceMAC, err := localMAC(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to determine local MAC")
	}

	db, err := storage.Open(filepath.Join(cfg.DataDir, "badgerdb"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open badger db")
	}
	defer func() {
		log.Err(db.Flatten(4)).Msg("flatten on stop")
		log.Err(db.RunValueLogGC(0.5)).Msg("run value log gc")
		if err := db.Close(); err != nil {
			log.Err(err).Msg("failed to close badger db")
		}
	}()

	transport, err := dialTransport(cfg.Transport, deviceMAC)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open transport")
	}
	defer transport.Close()

	// peers.json stays the spec-mandated external interface other tooling
	// reads; badger is the node's own source of truth, so a restart
	// restores from it and then re-mirrors to peers.json on the next change.
	peerStore := dualPeerStore{
		primary: peers.NewBadgerStore(db),
		mirror:  peers.NewJSONStore(filepath.Join(cfg.DataDir, "peers.json")),
	}
	registry := peers.NewRegistry()
	rows, err := peerStore.Load()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load peer table, starting empty")
	}
	registry.LoadRows(rows)
	persister := peers.NewPersister(registry, peerStore, func(err error) {
		log.Err(err).Msg("failed to persist peer table")
	})

	clk := clock.Real{}
	self := discovery.Identity{MAC: deviceMAC, Role: cfg.Role, Hostname: cfg.Hostname, DeviceID: cfg.DeviceID}
	diagFunc := func() domain.Diagnostics { return domain.Diagnostics{} }
	discoverer := discovery.New(self, transport, registry, persister, clk, diagFunc)

	events, cues := buildSinks(*httpAddr)

	nodeCfg := node.Config{
		Role:              cfg.Role,
		Self:              self,
		Transport:         transport,
		Registry:          registry,
		Persister:         persister,
		Discoverer:        discoverer,
		Clock:             clk,
		Log:               log.Logger,
		Events:            events,
		Cues:              cues,
		SpeedSensorSpaceM: cfg.SpeedSensorSpaceM,
	}

	switch cfg.Role {
	case domain.RoleStart:
		wireStart(&nodeCfg, cfg)
	case domain.RoleFinish:
		wireFinish(&nodeCfg, cfg)
	case domain.RoleSpeedtrap:
		wireSpeedtrap(&nodeCfg, cfg)
	case domain.RoleTelemetry:
		// discovery/pairing only: no IMU-capture hardware component exists
		// in this codebase, so a telemetry-role process just keeps the
		// peer table warm for the finish node's reassembler to pair with.
	}

	n := node.New(nodeCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("role", string(cfg.Role)).Str("mac", deviceMAC.String()).Msg("masstrap node starting")
	if err := n.Run(ctx); err != nil {
		log.Err(err).Msg("node run exited with error")
	}
	log.Info().Msg("masstrap node stopped")
}

// localMAC resolves the device's own address: LegacyManualMAC if set,
// otherwise derived from the hostname so repeated runs of the same binary
// keep a stable identity without real network hardware.
func localMAC(cfg config.DeviceConfig) (domain.MAC, error) {
	if cfg.LegacyManualMAC != "" {
		return domain.ParseMAC(cfg.LegacyManualMAC)
	}
	var mac domain.MAC
	h := fnv32(cfg.Hostname)
	mac[0] = 0x02 // locally administered, unicast
	mac[1] = byte(h >> 24)
	mac[2] = byte(h >> 16)
	mac[3] = byte(h >> 8)
	mac[4] = byte(h)
	mac[5] = cfg.DeviceID
	return mac, nil
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

func dialTransport(tc config.TransportConfig, mac domain.MAC) (radio.Transport, error) {
	switch tc.Kind {
	case "udp":
		return radio.NewUDP(mac, tc.UDPListenAddr, tc.UDPBroadcastAddr)
	case "redis":
		return radio.NewRedisBus(context.Background(), mac, tc.RedisAddr, tc.RedisTopic)
	case "loopback":
		return radio.NewHub().Join(mac), nil
	default:
		return nil, fmt.Errorf("main: unknown transport kind %q", tc.Kind)
	}
}

func buildSinks(httpAddr string) (sink.EventSink, sink.CueSink) {
	logging := sink.NewLoggingSink(log.Logger)
	if httpAddr == "" {
		return logging, logging
	}
	httpSink := sink.NewHTTPSink(log.Logger)
	go func() {
		if err := httpSink.ListenAndServe(httpAddr); err != nil {
			log.Err(err).Msg("http sink stopped")
		}
	}()
	return multiEventSink{logging, httpSink}, logging
}

// dualPeerStore persists the paired peer table to badger (the node's own
// source of truth, read back on restart) while mirroring every save to
// peers.json, the plain file other tooling on the box expects to find.
type dualPeerStore struct {
	primary *peers.BadgerStore
	mirror  *peers.JSONStore
}

func (d dualPeerStore) Load() ([]domain.PeerRecord, error) {
	return d.primary.Load()
}

func (d dualPeerStore) Save(rows []domain.PeerRecord) error {
	if err := d.primary.Save(rows); err != nil {
		return err
	}
	if err := d.mirror.Save(rows); err != nil {
		log.Warn().Err(err).Msg("failed to mirror peer table to peers.json")
	}
	return nil
}

// multiEventSink fans one snapshot broadcast out to several sinks; the
// first error is returned but every sink still gets a chance to run.
type multiEventSink []sink.EventSink

func (m multiEventSink) BroadcastState(snap sink.Snapshot) error {
	var first error
	for _, s := range m {
		if err := s.BroadcastState(snap); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openPin exports and returns a sysfs-backed PinReader for num, or reports
// ok=false if num is unset (0) or the export failed, so callers can fall
// back to a mock. activeLow matches the reflectance sensors' wiring: DO
// reads LOW when a car is present.
func openPin(num int, activeLow bool, label string) (arming.PinReader, bool) {
	if num == 0 {
		return nil, false
	}
	pin, err := arming.NewSysfsPin(num, activeLow)
	if err != nil {
		log.Warn().Err(err).Int("gpio", num).Str("sensor", label).Msg("gpio export failed, falling back to mock")
		return nil, false
	}
	return pin, true
}

// newBeam wires a real PinBeam over the sysfs GPIO at num, falling back to
// an in-process MockBeam when num is unset or the pin can't be exported
// (dry-run / bench testing without hardware).
func newBeam(num int, clk clock.Source, label string) node.BeamSensor {
	if pin, ok := openPin(num, true, label); ok {
		return node.NewPinBeam(pin, clk)
	}
	return node.NewMockBeam()
}

func wireStart(nodeCfg *node.Config, cfg config.DeviceConfig) {
	nodeCfg.Start = race.NewStart()
	nodeCfg.StartBeam = newBeam(cfg.StartBeamGPIOPin, nodeCfg.Clock, "start beam")

	explicit := arming.NewExplicit()
	sources := []arming.Source{explicit}

	if cfg.LiDARPort != "" {
		dev := arming.NewSerial(cfg.LiDARPort, 0)
		if err := dev.Connect(); err != nil {
			log.Warn().Err(err).Str("port", cfg.LiDARPort).Msg("lidar serial connect failed, arm source disabled")
		} else {
			sources = append(sources, arming.NewLiDAR(dev, cfg.LiDARThresholdCm))
		}
	}

	if pin, ok := openPin(cfg.ProximityGPIOPin, true, "proximity"); ok {
		prox := arming.NewProximity(pin)
		sources = append(sources, prox)
		nodeCfg.Proximity = prox
	}

	nodeCfg.Explicit = explicit
	nodeCfg.Arm = arming.NewPipeline(sources...)
}

func wireFinish(nodeCfg *node.Config, cfg config.DeviceConfig) {
	runLog := race.NewCSVRunLogger(filepath.Join(cfg.DataDir, "runs.csv"))
	nodeCfg.Finish = race.NewFinish(cfg.TrackLengthM, cfg.ScaleFactor, cfg.DryRun, runLog, log.Logger)
	nodeCfg.FinishBeam = newBeam(cfg.FinishBeamGPIOPin, nodeCfg.Clock, "finish beam")
	nodeCfg.Offset = offsetsync.New(nodeCfg.Clock, nodeCfg.Transport, log.Logger)

	nodeCfg.Telemetry = telemetry.New(telemetry.NewCSVSink(cfg.DataDir), log.Logger)
}

func wireSpeedtrap(nodeCfg *node.Config, cfg config.DeviceConfig) {
	nodeCfg.Trap = speedtrap.New()
	nodeCfg.TrapBeam1 = newBeam(cfg.TrapBeam1GPIOPin, nodeCfg.Clock, "trap beam 1")
	nodeCfg.TrapBeam2 = newBeam(cfg.TrapBeam2GPIOPin, nodeCfg.Clock, "trap beam 2")
}

