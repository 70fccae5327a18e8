// Package config loads dspbridge's settings from flags, environment
// variables, and an optional config file via pflag+viper. A flag given on
// the command line takes precedence over the environment, the environment
// over the config file, and the file over flag defaults.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every tunable the pipeline's components expose as
// properties, plus the ambient HTTP/telemetry surface.
type Config struct {
	// HTTP
	HTTPPort   int    `mapstructure:"http-port"`
	StaticDir  string `mapstructure:"static-dir"`
	EnableCOI  bool   `mapstructure:"enable-coi"`
	EnableCORS bool   `mapstructure:"enable-cors"`
	DiagPort   int    `mapstructure:"diag-port"`

	// udp_source
	Interface   string `mapstructure:"interface"`
	IPAddr      string `mapstructure:"ip-addr"`
	Port        int    `mapstructure:"port"`
	RecvBufSize int    `mapstructure:"recv-buf-size"`
	MsgSize     int    `mapstructure:"msg-size"`
	NumMsgs     int    `mapstructure:"num-msgs"`
	NATMap      bool   `mapstructure:"nat-map"`

	// Shared transport selection (stov, fft framer, histogram all key off this)
	Transport string `mapstructure:"transport"`
	Byteswap  bool   `mapstructure:"byteswap"`

	// fft / fft framer
	Window      string `mapstructure:"window"`
	FFTSize     int    `mapstructure:"fft-size"`
	FFTWThreads int    `mapstructure:"fftw-threads"`
	Shift       bool   `mapstructure:"shift"`

	// psd
	SampleRate    float64 `mapstructure:"sample-rate"`
	AltLogFormula bool    `mapstructure:"alt-log-formula"`

	// exp_smooth
	Alpha float64 `mapstructure:"alpha"`

	// histogram
	ADCBits int `mapstructure:"adc-bits"`

	// stov
	OutputSize int `mapstructure:"output-size"`

	// sinks
	FileWriterPath         string `mapstructure:"file-writer-path"`
	FileWriterNumBytes     uint64 `mapstructure:"file-writer-num-bytes"`
	AlignedMemWriterPath   string `mapstructure:"aligned-mem-writer-path"`
	AlignedMemWriterBytes  uint64 `mapstructure:"aligned-mem-writer-num-bytes"`

	// WebRTC / ICE
	ICEPortStart int      `mapstructure:"ice-port-start"`
	ICEPortEnd   int      `mapstructure:"ice-port-end"`
	StunURLs     []string `mapstructure:"stun"`
	NAT1To1IPs   []string `mapstructure:"nat-1to1-ips"`

	// Diagnostics
	SessionLogFile string `mapstructure:"session-log-file"`

	ConfigFile string `mapstructure:"-"`
}

// Load parses flags, applies FLEX_-style (here DSP_-prefixed)
// environment overrides, and merges an optional config file.
func Load() (Config, error) {
	var cfg Config
	fs := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.SortFlags = true

	fs.IntP("http-port", "p", 8080, "HTTP port to listen on")
	fs.String("static-dir", "", "Path to serve built UI (optional)")
	fs.Bool("enable-coi", true, "Enable Cross-Origin-Isolation headers (COOP/COEP)")
	fs.Bool("enable-cors", true, "Enable permissive CORS headers")
	fs.Int("diag-port", 4992, "UDP port for the standalone diagnostic packet tap")

	fs.String("interface", "", "Interface name to join multicast on (empty = default)")
	fs.String("ip-addr", "239.1.2.3", "Unicast or multicast address to bind udp_source to")
	fs.Int("port", 5000, "UDP port to bind udp_source to")
	fs.Int("recv-buf-size", 65535, "SO_RCVBUF size for udp_source")
	fs.Int("msg-size", 1472, "Per-datagram receive buffer size")
	fs.Int("num-msgs", 64, "Scatter-gather receive batch size")
	fs.Bool("nat-map", false, "Map udp_source's port on a NAT gateway via UPnP/NAT-PMP/PCP")

	fs.String("transport", "vita49", "Wire transport: vita49 or sdds")
	fs.Bool("byteswap", false, "Byteswap convert kernel inputs (stov default; histogram overrides to true)")

	fs.String("window", "BLACKMAN_HARRIS", "Analysis window: \"\", BLACKMAN_HARRIS, or HAMMING")
	fs.Int("fft-size", 1024, "FFT transform length")
	fs.Int("fftw-threads", 1, "Accepted for property compatibility; unused by the gonum-backed plan")
	fs.Bool("shift", true, "fftshift FFT output so DC is centered")

	fs.Float64("sample-rate", 1e6, "Sample rate in Hz, used by psd and histogram")
	fs.Bool("alt-log-formula", false, "Use log2(power) instead of 10*log10(power) for PSD dB conversion")

	fs.Float64("alpha", 1.0, "Exponential smoother coefficient")

	fs.Int("adc-bits", 12, "ADC bit depth, sets histogram bin count")

	fs.Int("output-size", 1024, "Elements per stov-emitted buffer")

	fs.String("file-writer-path", "", "Path to write extracted payload bytes (empty disables)")
	fs.Uint64("file-writer-num-bytes", 0, "Byte cap for file_writer (0 disables)")
	fs.String("aligned-mem-writer-path", "", "Path to write raw aligned buffer bytes (empty disables)")
	fs.Uint64("aligned-mem-writer-num-bytes", 0, "Byte cap for aligned_mem_writer (0 disables)")

	fs.Int("ice-port-start", 50313, "Lowest UDP port for ICE (inclusive)")
	fs.Int("ice-port-end", 50413, "Highest UDP port for ICE (inclusive)")
	fs.StringSlice("stun", []string{
		"stun:stun.l.google.com:19302",
		"stun:stun.cloudflare.com:3478",
	}, "Comma-separated STUN URLs")
	fs.StringSlice("nat-1to1-ips", nil, "Optional public IPs for NAT 1:1 mapping")
	fs.String("session-log-file", "", "Path to log rtcsink session lifecycle events (empty disables)")
	fs.String("config", "", "Path to optional config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `dspbridge

Usage:
  %s [flags]

Flags:
`, os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment:
  Prefix: DSP_
  Examples:
    DSP_HTTP_PORT=8081 DSP_FFT_SIZE=2048

Config file:
  Set DSP_CONFIG=/path/to/file.(yaml|json|toml)
  Or place dspbridge.yaml/json/toml in current directory
`)
	}

	pflag.CommandLine.AddFlagSet(fs)
	pflag.Parse()

	v := viper.New()
	v.SetEnvPrefix("DSP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		fs.Usage()
		os.Exit(2)
	}

	cfgFile := v.GetString("config")
	if envFile := os.Getenv("DSP_CONFIG"); envFile != "" {
		cfgFile = envFile
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("dspbridge")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err == nil {
		log.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	log.Printf("[config] http=:%d udp=%s:%d fft=%d transport=%s sample_rate=%g\n",
		cfg.HTTPPort, cfg.IPAddr, cfg.Port, cfg.FFTSize, cfg.Transport, cfg.SampleRate)

	if cfg.ICEPortEnd < cfg.ICEPortStart {
		return cfg, fmt.Errorf("invalid ICE port range %d-%d", cfg.ICEPortStart, cfg.ICEPortEnd)
	}
	if cfg.FFTSize <= 0 {
		return cfg, fmt.Errorf("fft-size must be positive")
	}
	if cfg.OutputSize <= 0 {
		return cfg, fmt.Errorf("output-size must be positive")
	}

	return cfg, nil
}
