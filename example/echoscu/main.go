package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/spf13/cast"
	"github.com/younglifestyle/dicom4go/acse"
	"github.com/younglifestyle/dicom4go/association"
	"github.com/younglifestyle/dicom4go/common"
	"github.com/younglifestyle/dicom4go/dimse"
)

func main() {
	ae := flag.String("ae", "ECHOSCU", "Local AE title")
	called := flag.String("called", "ANY-SCP", "Called AE title")
	count := flag.Int("count", 1, "Number of C-ECHO requests")
	timeout := flag.Duration("timeout", 30*time.Second, "ACSE and DIMSE timeout")
	config := flag.String("config", "", "YAML configuration file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] host port\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	port, err := cast.ToUint16E(flag.Arg(1))
	if err != nil {
		log.Fatalf("invalid port %q: %v", flag.Arg(1), err)
	}

	opts := []association.Option{
		association.WithAETitle(*ae),
		association.WithACSETimeout(*timeout),
		association.WithDIMSETimeout(*timeout),
	}
	if *config != "" {
		base, err := association.LoadOptions(*config)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		opts = []association.Option{association.WithOptions(base)}
	}
	opts = append(opts, association.WithHandlers(common.EventDIMSESent, func(e common.Event) error {
		log.Printf("sent %v on context %v", e.Get("message"), e.Get("context_id"))
		return nil
	}))

	contexts, err := acse.BuildContexts([]string{acse.VerificationSOPClass}, nil)
	if err != nil {
		log.Fatal(err)
	}
	addr := net.JoinHostPort(flag.Arg(0), cast.ToString(port))
	a, err := association.Request(context.Background(), addr,
		association.RequestParams{CalledAETitle: *called, Contexts: contexts}, opts...)
	if err != nil {
		log.Fatalf("associate with %s: %v", addr, err)
	}

	failed := 0
	for i := 0; i < *count; i++ {
		status, err := a.Echo()
		if err != nil {
			log.Printf("C-ECHO failed: %v", err)
			failed++
			break
		}
		if status != dimse.StatusSuccess {
			failed++
		}
		log.Printf("C-ECHO status 0x%04X", status)
	}

	if a.IsEstablished() {
		if err := a.Release(); err != nil {
			log.Printf("release: %v", err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
