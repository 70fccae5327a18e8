// Command dspbridge wires udp_source through the STOV, FFT, PSD,
// smoothing, and histogram kernels and serves the result to browsers
// over WebRTC, alongside a standalone diagnostic packet tap.
package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/geontech/composite-dsp/internal/align"
	"github.com/geontech/composite-dsp/internal/component"
	"github.com/geontech/composite-dsp/internal/config"
	"github.com/geontech/composite-dsp/internal/core"
	"github.com/geontech/composite-dsp/internal/diag"
	"github.com/geontech/composite-dsp/internal/fftframer"
	"github.com/geontech/composite-dsp/internal/framer"
	"github.com/geontech/composite-dsp/internal/histogram"
	"github.com/geontech/composite-dsp/internal/psd"
	"github.com/geontech/composite-dsp/internal/rtcsink"
	"github.com/geontech/composite-dsp/internal/sink"
	"github.com/geontech/composite-dsp/internal/smooth"
	"github.com/geontech/composite-dsp/internal/udpsource"
	"github.com/geontech/composite-dsp/internal/window"
)

// frame tags identify a broadcast payload's contents for the browser
// client, which has no other framing to go on over the data channel.
const (
	tagPSD       byte = 1
	tagHistogram byte = 2
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	transport := framer.TransportVITA49
	fftTransport := fftframer.TransportVITA49
	histTransport := histogram.TransportVITA49
	if cfg.Transport == "sdds" {
		transport = framer.TransportSDDS
		fftTransport = fftframer.TransportSDDS
		histTransport = histogram.TransportSDDS
	}

	winSel := fftframer.WindowBlackmanHarris
	switch cfg.Window {
	case "HAMMING":
		winSel = fftframer.WindowHamming
	case "":
		winSel = fftframer.WindowNone
	}

	rawOut := component.NewPort[[][]byte](64)
	src := udpsource.New(udpsource.Params{
		Interface:   cfg.Interface,
		IPAddr:      cfg.IPAddr,
		Port:        uint32(cfg.Port),
		RecvBufSize: uint32(cfg.RecvBufSize),
		MsgSize:     uint32(cfg.MsgSize),
		NumMsgs:     uint32(cfg.NumMsgs),
		NATMap:      cfg.NATMap,
	}, rawOut)
	if err := src.Initialize(); err != nil {
		log.Fatalf("udpsource: %v", err)
	}

	fftIn := component.NewPort[[][]byte](64)
	spectrumOut := component.NewPort[*align.Buf[complex128]](16)
	ffr := fftframer.New(fftframer.Params{
		Window:      winSel,
		FFTSize:     cfg.FFTSize,
		FFTWThreads: cfg.FFTWThreads,
		Shift:       cfg.Shift,
		Transport:   fftTransport,
	}, fftIn, spectrumOut)
	if err := ffr.Initialize(); err != nil {
		log.Fatalf("fftframer: %v", err)
	}

	stovOut := component.NewPort[*align.Buf[complex64]](16)
	stov := framer.New[complex64](framer.Params{
		OutputSize: uint32(cfg.OutputSize),
		Transport:  transport,
		Byteswap:   cfg.Byteswap,
	}, stovOut)
	if err := stov.Initialize(); err != nil {
		log.Fatalf("framer: %v", err)
	}

	hist := histogram.New(histogram.Params{
		Transport:  histTransport,
		MsgSize:    cfg.MsgSize,
		Byteswap:   true, // histogram's wire convention, kept distinct from STOV's default
		ADCBits:    cfg.ADCBits,
		SampleRate: uint32(cfg.SampleRate),
	})

	var fileWriter *sink.FileWriter
	if cfg.FileWriterPath != "" {
		fileWriter = sink.NewFileWriter(cfg.FileWriterPath, cfg.FileWriterNumBytes)
		if err := fileWriter.Initialize(); err != nil {
			log.Fatalf("sink.FileWriter: %v", err)
		}
	}

	var alignedWriter *sink.AlignedMemWriter[complex64]
	if cfg.AlignedMemWriterPath != "" {
		alignedWriter = sink.NewAlignedMemWriter[complex64](cfg.AlignedMemWriterPath, cfg.AlignedMemWriterBytes)
		if err := alignedWriter.Initialize(); err != nil {
			log.Fatalf("sink.AlignedMemWriter: %v", err)
		}
	}

	win := windowFor(cfg.Window, cfg.FFTSize)
	psdParams := psd.Params[float64]{
		WindowSum:     windowSum(win),
		SampleRate:    cfg.SampleRate,
		AltLogFormula: cfg.AltLogFormula,
	}
	smoother := smooth.New[float64](cfg.Alpha)

	sessions := core.NewSessionManager()
	rtc := rtcsink.New(sessions, rtcsink.Options{
		ICEPortStart: cfg.ICEPortStart,
		ICEPortEnd:   cfg.ICEPortEnd,
		STUN:         cfg.StunURLs,
		NAT1To1IPs:   cfg.NAT1To1IPs,
	}, cfg.SessionLogFile)

	tap := diag.New(diag.Options{Port: cfg.DiagPort})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := src.Start(); err != nil {
		log.Fatalf("udpsource start: %v", err)
	}
	if err := ffr.Start(); err != nil {
		log.Fatalf("fftframer start: %v", err)
	}
	go func() {
		if err := tap.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("diag tap: %v", err)
		}
	}()

	// udpsource driver: repeatedly pulls a batch; the goroutine after it
	// fans each batch out to every batch-oriented consumer before handing
	// the same batch to the FFT path.
	go func() {
		for {
			retval, err := src.Process()
			if err != nil {
				log.Printf("udpsource: %v", err)
			}
			if retval == component.Finish {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
		}
	}()
	go func() {
		for {
			sample, ok := rawOut.Recv()
			if !ok {
				return
			}
			batch := sample.Value

			if _, err := stov.Process(batch); err != nil {
				log.Printf("framer: %v", err)
			}
			if bins, ready, err := hist.Process(joinBatch(batch)); err != nil {
				log.Printf("histogram: %v", err)
			} else if ready {
				rtc.Broadcast(encodeUint32(tagHistogram, bins))
			}
			if fileWriter != nil {
				if retval, err := fileWriter.Process(batch); err != nil {
					log.Printf("file_writer: %v", err)
				} else if retval == component.Finish {
					_ = fileWriter.Stop()
					fileWriter = nil
				}
			}
			fftIn.Send(batch, sample.TS)
		}
	}()

	// fftframer driver: drains its internal queue as fast as frames
	// arrive, each Process call blocking up to its internal deadline.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if _, err := ffr.Process(); err != nil {
				log.Printf("fftframer: %v", err)
			}
		}
	}()

	// PSD/smoothing/broadcast path.
	go func() {
		for {
			sample, ok := spectrumOut.Recv()
			if !ok {
				return
			}
			power := align.New[float64](sample.Value.Len())
			if err := psd.Power(psdParams, sample.Value, power); err != nil {
				log.Printf("psd: %v", err)
				continue
			}
			psd.ToDB(psdParams, power)
			smoother.Process(power)
			rtc.Broadcast(encodeFloat64(tagPSD, power.Data()))
		}
	}()

	// STOV output path: optional raw aligned-buffer capture.
	go func() {
		for {
			sample, ok := stovOut.Recv()
			if !ok {
				return
			}
			if alignedWriter != nil {
				if retval, err := alignedWriter.Process(sample.Value); err != nil {
					log.Printf("aligned_mem_writer: %v", err)
				} else if retval == component.Finish {
					_ = alignedWriter.Stop()
					alignedWriter = nil
				}
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/rtc/offer", rtc.OfferHandler)
	mux.HandleFunc("/ws/diag", tap.WSHandler)
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	var handler http.Handler = mux
	if cfg.EnableCORS {
		handler = withCORS(handler)
	}
	if cfg.EnableCOI {
		handler = withCOI(handler)
	}

	srv := &http.Server{
		Addr:              httpAddr(cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = src.Stop()
	_ = ffr.Stop()
	if fileWriter != nil {
		_ = fileWriter.Stop()
	}
	if alignedWriter != nil {
		_ = alignedWriter.Stop()
	}
}

func windowFor(name string, n int) *align.Buf[float64] {
	switch name {
	case "HAMMING":
		return window.Hamming[float64](n, false)
	case "":
		w := align.New[float64](n)
		data := w.Data()
		for i := range data {
			data[i] = 1
		}
		return w
	default:
		return window.BlackmanHarris[float64](n, false)
	}
}

func windowSum(w *align.Buf[float64]) float64 {
	var sum float64
	for _, v := range w.Data() {
		sum += v * v
	}
	return sum
}

func joinBatch(batch [][]byte) []byte {
	var buf bytes.Buffer
	for _, b := range batch {
		buf.Write(b)
	}
	return buf.Bytes()
}

func encodeFloat64(tag byte, data []float64) []byte {
	buf := make([]byte, 1+8*len(data))
	buf[0] = tag
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[1+i*8:], math.Float64bits(v))
	}
	return buf
}

func encodeUint32(tag byte, data []uint32) []byte {
	buf := make([]byte, 1+4*len(data))
	buf[0] = tag
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[1+i*4:], v)
	}
	return buf
}

func httpAddr(port int) string {
	if port <= 0 {
		port = 8080
	}
	return ":" + strconv.Itoa(port)
}

// withCOI adds COOP/COEP/CORP so SharedArrayBuffer works in the browser
// client. Enable in dev; COEP requires every cross-origin subresource to
// be CORS-enabled or send CORP: cross-origin.
func withCOI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
