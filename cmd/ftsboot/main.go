package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/amrbekhit/ftsboot"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const appVersion = "1.0.0"

func openBus(o options) (i2c.BusCloser, error) {
	if o.port != "" {
		log.Infof("opening Bus Pirate on %s", o.port)
		bp, err := ftsboot.OpenBusPirate(o.port, o.baud)
		if err != nil {
			return nil, err
		}
		return bp, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	log.Infof("opening /dev/i2c-%d", o.bus)
	return i2creg.Open(strconv.Itoa(o.bus))
}

func setupLogging(verbose bool) {
	fd := os.Stderr.Fd()
	log.SetOutput(colorable.NewColorableStderr())
	log.SetFormatter(&log.TextFormatter{
		ForceColors: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	ftsboot.SetLogger(log.StandardLogger())
}

func main() {
	opts, err := parseArgs(os.Args[0], os.Args[1:])
	var uerr usageError
	if err == flag.ErrHelp || errors.As(err, &uerr) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		os.Exit(1)
	}

	if opts.version {
		fmt.Println(appVersion)
		return
	}

	setupLogging(opts.verbose)

	bus, err := openBus(opts)
	if err != nil {
		log.Fatalf("failed to open I2C bus: %v", err)
	}
	defer bus.Close()

	log.Infof("setting addr to %#02x", opts.address.value)
	dev := ftsboot.New(bus, uint16(opts.address.value), ftsboot.WithPacketHook(logProgress))

	if err := run(dev, opts); err != nil {
		bus.Close()
		log.Fatal(err)
	}
}

func run(dev *ftsboot.Device, opts options) error {
	if _, err := processIdentify(dev, opts.chipID.value); err != nil {
		return err
	}
	if opts.input == "" && opts.output == "" {
		log.Infof("nothing to do (read or write)")
		return nil
	}

	// Dump first so the old firmware is saved before it gets replaced.
	if opts.output != "" {
		if err := processDump(dev, opts.output); err != nil {
			return err
		}
	}
	if opts.input != "" {
		if err := processFlash(dev, opts.input); err != nil {
			return err
		}
	}
	return nil
}
