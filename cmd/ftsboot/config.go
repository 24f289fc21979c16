package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/amrbekhit/ftsboot"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// fileConfig is the optional YAML configuration file. Flags given on the
// command line take precedence over it.
type fileConfig struct {
	Bus     *int   `yaml:"bus,omitempty"`
	Address string `yaml:"address,omitempty"`
	ChipID  string `yaml:"chipid,omitempty"`
	Port    string `yaml:"port,omitempty"`
	Baud    int    `yaml:"baud,omitempty"`
}

type options struct {
	bus     int
	address hexByte
	chipID  hexByte
	input   string
	output  string
	port    string
	baud    int
	config  string
	verbose bool
	version bool
}

// hexByte is a flag.Value for hex bytes with an optional 0x prefix.
type hexByte struct {
	value int
	max   int
}

func (h *hexByte) String() string {
	if h == nil || h.value < 0 {
		return "detect"
	}
	return fmt.Sprintf("%#02x", h.value)
}

func (h *hexByte) Set(s string) error {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return fmt.Errorf("invalid hex byte %q", s)
	}
	if int(v) > h.max {
		return fmt.Errorf("%#x is out of range (max %#x)", v, h.max)
	}
	h.value = int(v)
	return nil
}

func defaultOptions() options {
	return options{
		bus:     2,
		address: hexByte{value: ftsboot.DefaultAddress, max: 0x7f},
		chipID:  hexByte{value: -1, max: 0xff},
		baud:    115200,
	}
}

const usageHeader = `FT5x06 tool usage: %s [OPTIONS]

Reads (-o) and/or writes (-i) the firmware of FT5x06, FT5x16 and FT5x26 touch
controllers. Without -i or -o the chip ID and firmware version are printed.
Image files ending in .hex are Intel HEX, anything else is raw binary.

OPTIONS:
`

func newFlagSet(name string, o *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	addrHelp := "I2C address of the FT5x06 controller (hex)."
	fs.Var(&o.address, "a", addrHelp)
	fs.Var(&o.address, "address", addrHelp)
	busHelp := "I2C bus the FT5x06 controller is on."
	fs.IntVar(&o.bus, "b", o.bus, busHelp)
	fs.IntVar(&o.bus, "bus", o.bus, busHelp)
	chipHelp := "Force chip ID to the value (hex). Default is read from controller."
	fs.Var(&o.chipID, "c", chipHelp)
	fs.Var(&o.chipID, "chipid", chipHelp)
	inHelp := "Input firmware file to flash."
	fs.StringVar(&o.input, "i", "", inHelp)
	fs.StringVar(&o.input, "input", "", inHelp)
	outHelp := "Output firmware file read from FT5x06."
	fs.StringVar(&o.output, "o", "", outHelp)
	fs.StringVar(&o.output, "output", "", outHelp)

	fs.StringVar(&o.port, "port", "", "Serial port of a Bus Pirate to use instead of the I2C bus.")
	fs.IntVar(&o.baud, "baud", o.baud, "Bus Pirate baud rate.")
	fs.BoolVar(&o.verbose, "v", false, "Enable verbose logging.")
	fs.BoolVar(&o.version, "version", false, "Prints the program version.")

	// Format an example configuration in YAML.
	bus := 2
	buf := new(bytes.Buffer)
	yaml.NewEncoder(buf).Encode(fileConfig{Bus: &bus, Address: "0x38", ChipID: "0x55"})
	fs.StringVar(&o.config, "config", "", "Configuration yaml file. Example:\n\n"+buf.String())

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), usageHeader, name)
		fs.PrintDefaults()
	}
	return fs
}

// usageError is a command line error the flag package has already reported
// along with the usage text.
type usageError struct {
	error
}

// parseArgs parses the command line and merges in the configuration file.
func parseArgs(name string, args []string) (options, error) {
	o := defaultOptions()
	fs := newFlagSet(name, &o)
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return o, err
		}
		return o, usageError{err}
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return o, errors.Errorf("unexpected argument %q", fs.Arg(0))
	}
	if o.config == "" {
		return o, nil
	}

	f, err := ioutil.ReadFile(o.config)
	if err != nil {
		return o, errors.Wrap(err, "failed to open config file")
	}
	cfg := new(fileConfig)
	if err := yaml.UnmarshalStrict(f, cfg); err != nil {
		return o, errors.Wrap(err, "failed to parse config file")
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if cfg.Bus != nil && !set["b"] && !set["bus"] {
		o.bus = *cfg.Bus
	}
	if cfg.Address != "" && !set["a"] && !set["address"] {
		if err := o.address.Set(cfg.Address); err != nil {
			return o, errors.Wrap(err, "config address")
		}
	}
	if cfg.ChipID != "" && !set["c"] && !set["chipid"] {
		if err := o.chipID.Set(cfg.ChipID); err != nil {
			return o, errors.Wrap(err, "config chipid")
		}
	}
	if cfg.Port != "" && !set["port"] {
		o.port = cfg.Port
	}
	if cfg.Baud != 0 && !set["baud"] {
		o.baud = cfg.Baud
	}
	return o, nil
}
