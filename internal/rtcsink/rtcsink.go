// Package rtcsink is the telemetry sink's WebRTC transport: it answers
// browser offers, holds one data channel per session, and fans out
// PSD/histogram frames to every connected subscriber.
package rtcsink

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"

	"github.com/geontech/composite-dsp/internal/core"
	"github.com/geontech/composite-dsp/internal/nat"
)

// Options configures the RTC server.
type Options struct {
	ICEPortStart int
	ICEPortEnd   int
	STUN         []string
	NAT1To1IPs   []string
}

// Server holds the WebRTC API instance and every live session.
type Server struct {
	Sessions   *core.SessionManager
	ICEServers []webrtc.ICEServer
	api        *webrtc.API
	log        *sessionLogger
}

// New constructs a Server. logPath is forwarded to newSessionLogger;
// an empty path disables the session log.
func New(sessions *core.SessionManager, opt Options, logPath string) *Server {
	var se webrtc.SettingEngine

	se.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4, webrtc.NetworkTypeUDP6,
	})

	if opt.ICEPortStart == opt.ICEPortEnd && opt.ICEPortStart != 0 {
		port := opt.ICEPortStart
		if mux, err := ice.NewMultiUDPMuxFromPort(port); err == nil {
			se.SetICEUDPMux(mux)
			log.Printf("[rtcsink] using UDP mux on all interfaces, port %d\n", port)
		} else {
			log.Printf("[rtcsink] failed to create UDP mux on port %d: %v", port, err)
		}
	} else if opt.ICEPortStart != 0 || opt.ICEPortEnd != 0 {
		if err := se.SetEphemeralUDPPortRange(uint16(opt.ICEPortStart), uint16(opt.ICEPortEnd)); err != nil {
			log.Printf("[rtcsink] invalid ICE port range %d..%d: %v", opt.ICEPortStart, opt.ICEPortEnd, err)
		}
	}

	mapper, pubIP, err := nat.Discover()
	if err != nil {
		log.Printf("[nat] discovery: %v", err)
	} else {
		log.Printf("[nat] external IP: %s", pubIP)
		if len(opt.NAT1To1IPs) == 0 {
			opt.NAT1To1IPs = []string{pubIP}
		}
		if opt.ICEPortStart != 0 && opt.ICEPortStart == opt.ICEPortEnd {
			if err := mapper.MapUDP(opt.ICEPortStart, nat.PurposeICE, 1*time.Hour); err != nil {
				log.Printf("[nat] ICE port map: %v", err)
				mapper.Close()
			} else {
				mapper.StartRefresher(10 * time.Minute)
			}
		} else {
			mapper.Close()
		}
	}
	if len(opt.NAT1To1IPs) > 0 {
		se.SetNAT1To1IPs(opt.NAT1To1IPs, webrtc.ICECandidateTypeHost)
	}

	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	var iceServers []webrtc.ICEServer
	if len(opt.STUN) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: opt.STUN})
	}

	logger, err := newSessionLogger(logPath)
	if err != nil {
		log.Printf("[rtcsink] session log disabled: %v", err)
	}

	return &Server{
		Sessions:   sessions,
		ICEServers: iceServers,
		api:        api,
		log:        logger,
	}
}

type offerRequest struct {
	SessionID string `json:"sessionId"` // empty to mint a new session
	SDP       string `json:"sdp"`
}

type answerResponse struct {
	SessionID string `json:"sessionId"`
	SDP       string `json:"sdp"`
}

// OfferHandler accepts a browser's SDP offer, creates (or reuses) a
// session, and replies with the SDP answer plus the session's ID.
func (s *Server) OfferHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	offerSDP := req.SDP
	if offerSDP == "" || !strings.HasPrefix(offerSDP, "v=") {
		http.Error(w, `{"error":"missing/invalid sdp"}`, http.StatusBadRequest)
		return
	}

	ans, err := s.handleOffer(req.SessionID, offerSDP)
	if err != nil {
		log.Printf("[rtcsink] handleOffer failed: %v", err)
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": rootMsg(err)})
		return
	}
	_ = json.NewEncoder(w).Encode(answerResponse{SessionID: req.SessionID, SDP: ans})
}

func (s *Server) handleOffer(sessionID, offerSDP string) (string, error) {
	sess := s.Sessions.Get(sessionID)
	if sess == nil {
		pc, err := s.api.NewPeerConnection(webrtc.Configuration{ICEServers: s.ICEServers})
		if err != nil {
			return "", stepErr("new-pc", err)
		}
		sess = s.Sessions.Put(sessionID, pc)
		s.log.logEvent(sessionID, "session created")

		dc, err := pc.CreateDataChannel("dsp", nil)
		if err != nil {
			return "", stepErr("new-dc", err)
		}
		sess.DC = dc
		dc.OnOpen(func() { s.log.logEvent(sessionID, "data channel open") })
		dc.OnClose(func() { s.log.logEvent(sessionID, "data channel closed") })

		pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
			s.log.logEvent(sessionID, "peer connection state: "+st.String())
			if st == webrtc.PeerConnectionStateFailed || st == webrtc.PeerConnectionStateClosed {
				_ = pc.Close()
				s.Sessions.Delete(sessionID)
			}
		})
	}

	if err := sess.PC.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	}); err != nil {
		return "", stepErr("set-remote", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(sess.PC)

	answer, err := sess.PC.CreateAnswer(nil)
	if err != nil {
		return "", stepErr("create-answer", err)
	}
	if err := sess.PC.SetLocalDescription(answer); err != nil {
		return "", stepErr("set-local", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(10 * time.Second):
		return "", stepErr("gather-timeout", errors.New("ICE gathering did not complete"))
	}

	ld := sess.PC.LocalDescription()
	if ld == nil {
		return "", stepErr("no-local-desc", errors.New("no local description"))
	}
	return ld.SDP, nil
}

// Broadcast sends b to every open data channel, chunked to respect
// WebRTC's message size limits and backing off while a channel's
// buffered-amount watermark is high.
func (s *Server) Broadcast(b []byte) {
	for _, sess := range s.Sessions.All() {
		dc := sess.DC
		if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
			continue
		}
		sendChunked(dc, b)
	}
}

const chunkSize = 16 * 1024
const backpressureWatermark = 1 << 20

func sendChunked(dc *webrtc.DataChannel, p []byte) {
	for dc.BufferedAmount() > backpressureWatermark {
		time.Sleep(2 * time.Millisecond)
	}
	for off := 0; off < len(p); off += chunkSize {
		end := off + chunkSize
		if end > len(p) {
			end = len(p)
		}
		_ = dc.Send(p[off:end])
	}
}

type stepError struct {
	step string
	err  error
}

func (e *stepError) Error() string         { return fmt.Sprintf("%s: %v", e.step, e.err) }
func stepErr(step string, err error) error { return &stepError{step: step, err: err} }

func rootMsg(err error) string {
	var se *stepError
	if errors.As(err, &se) {
		return se.err.Error()
	}
	return err.Error()
}
