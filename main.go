package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/flowfusion/api"
	"github.com/banshee-data/flowfusion/internal/bus"
	"github.com/banshee-data/flowfusion/internal/fusion"
	"github.com/banshee-data/flowfusion/internal/fusiondb"
	"github.com/banshee-data/flowfusion/internal/imu"
	"github.com/banshee-data/flowfusion/internal/relay"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode (mock serial port, in-memory bus)")
	listen     = flag.String("listen", ":8080", "Listen address")
	broker     = flag.String("broker", "", "MQTT broker URL, e.g. tcp://localhost:1883 (empty: in-memory bus)")
	serialPort = flag.String("serial", "/dev/ttyUSB0", "IMU serial port")
	baudRate   = flag.Int("baud", 115200, "IMU serial baud rate")
	configPath = flag.String("config", "", "Path to estimator config JSON")
	dbPath     = flag.String("db", "fusion_data.db", "Path to sample/estimate store (empty: disable recording)")
	runNote    = flag.String("note", "", "Note attached to the recorded run")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := fusion.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = fusion.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	var b bus.Bus
	if *broker == "" || *devMode {
		b = bus.NewMemoryBus()
	} else {
		var err error
		b, err = bus.NewMQTTBus(*broker, "flowfusion")
		if err != nil {
			log.Fatalf("failed to connect to broker: %v", err)
		}
	}
	defer b.Close()

	var port imu.PortInterface
	if *devMode {
		f, err := os.Open("fixtures.txt")
		if err != nil {
			log.Fatalf("failed to open fixtures file: %v", err)
		}
		defer f.Close()
		port = imu.NewMockPort(f)
	} else {
		var err error
		port, err = imu.OpenPort(*serialPort, *baudRate)
		if err != nil {
			log.Fatalf("failed to open IMU serial port: %v", err)
		}
	}
	defer port.Close()

	node := fusion.NewNode(cfg, b)

	var store *fusiondb.DB
	var recorder *fusiondb.Recorder
	if *dbPath != "" {
		var err error
		store, err = fusiondb.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer store.Close()

		runID, err := store.BeginRun(*runNote)
		if err != nil {
			log.Fatalf("failed to begin run: %v", err)
		}
		log.Printf("recording run %s", runID)

		node.SetRecorder(store.NewEstimateWriter(runID))
		recorder = fusiondb.NewRecorder(store, b, runID)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := port.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// pump parsed IMU frames onto the bus
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := imu.NewSource(port, b).Run(ctx); err != nil {
			log.Printf("imu source terminated: %v", err)
		}
	}()

	// rebase raw odometry and derive the optical speed stream
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := relay.New(b, cfg.GetFlowSpeedScale()).Run(ctx); err != nil {
			log.Printf("odom relay terminated: %v", err)
		}
	}()

	// the estimator itself
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := node.Run(ctx); err != nil {
			log.Printf("fusion node terminated: %v", err)
		}
	}()

	// persist incoming samples for replay
	if recorder != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := recorder.Run(ctx); err != nil {
				log.Printf("sample recorder terminated: %v", err)
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		apiMux := api.NewServer(node, store).ServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
