package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/younglifestyle/dicom4go/association"
	"github.com/younglifestyle/dicom4go/common"
)

func main() {
	addr := flag.String("addr", ":11112", "Listen address")
	ae := flag.String("ae", "ECHOSCP", "Local AE title")
	config := flag.String("config", "", "YAML configuration file")
	strict := flag.Bool("strict", false, "Reject requests addressed to another AE title")
	flag.Parse()

	cfg := &association.Config{Options: association.DefaultOptions()}
	if *config != "" {
		var err error
		if cfg, err = association.LoadConfig(*config); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = *addr
	}
	if *config == "" {
		cfg.Options.AETitle = *ae
		cfg.Server.RequireCalledAETitle = *strict
	}
	cfg.Server.EchoSCP = true
	defer common.Sync(cfg.Options.Logger)

	server, err := association.NewServer(cfg.Server,
		association.WithOptions(cfg.Options),
		association.WithHandlers(common.EventEstablished, func(e common.Event) error {
			a := e.Source.(*association.Association)
			log.Printf("association from %s established", a.PeerAETitle())
			return nil
		}),
		association.WithHandlers(common.EventDIMSERecv, func(e common.Event) error {
			log.Printf("received %v", e.Get("message"))
			return nil
		}),
		association.WithHandlers(common.EventReleased, func(e common.Event) error {
			log.Println("association released")
			return nil
		}),
		association.WithHandlers(common.EventAborted, func(e common.Event) error {
			log.Printf("association aborted: %v", e.Get("error"))
			return nil
		}),
	)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}

	go func() {
		<-interrupt()
		log.Println("shutting down")
		if err := server.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	log.Printf("%s listening on %s", cfg.Options.AETitle, server.Addr())
	if err := server.Serve(); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

func interrupt() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch
}
