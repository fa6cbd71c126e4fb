// Package recorder orchestrates per-peer recording sessions. Each session
// consumes the target peer's video through a dedicated transport and pipes
// the packet stream into an external ffmpeg process; what ffmpeg does with
// the bytes is outside this package's concern.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"

	"parley/room"
	"parley/sfu"
)

const defaultFFmpegPath = "ffmpeg"

var (
	// ErrUserNotFound is returned when the target peer is not in the room.
	ErrUserNotFound = errors.New("user not found")

	// ErrNoVideoProducer is returned when the target peer publishes no video.
	ErrNoVideoProducer = errors.New("no video producer found")
)

// Config configures the recorder.
type Config struct {
	// Directory is where recording files are written.
	Directory string

	// FFmpegPath overrides the ffmpeg binary to spawn.
	FFmpegPath string
}

// Info is a read-only projection of one recording session.
type Info struct {
	ID        string
	RoomID    string
	UserID    string
	FilePath  string
	StartedAt time.Time
}

type session struct {
	info      Info
	transport sfu.Transport
	consumer  sfu.Consumer
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stopOnce  sync.Once
}

// release tears the session's media path and process down. Safe to call from
// both Stop and the process reaper.
func (s *session) release() {
	s.stopOnce.Do(func() {
		if err := s.consumer.Close(); err != nil {
			log.Warn().Err(err).Str("recording_id", s.info.ID).Msg("failed to close recording consumer")
		}
		if err := s.transport.Close(); err != nil {
			log.Warn().Err(err).Str("recording_id", s.info.ID).Msg("failed to close recording transport")
		}
		if err := s.stdin.Close(); err != nil {
			log.Debug().Err(err).Str("recording_id", s.info.ID).Msg("failed to close recording pipe")
		}
		if s.cmd.Process != nil {
			if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
				log.Debug().Err(err).Str("recording_id", s.info.ID).Msg("failed to interrupt recording process")
			}
		}
	})
}

// Recorder tracks live recording sessions.
type Recorder struct {
	config   Config
	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a recorder writing into the configured directory.
func New(config Config) *Recorder {
	if config.FFmpegPath == "" {
		config.FFmpegPath = defaultFFmpegPath
	}
	return &Recorder{
		config:   config,
		sessions: make(map[string]*session),
	}
}

// Start begins recording the peer's video publication. The caller must hold
// the room lock. The session consumes through its own transport so tearing it
// down never touches the peer's signaling transports.
func (r *Recorder) Start(ctx context.Context, rm *room.Room, peerID string) (Info, error) {
	peer, ok := rm.Peer(peerID)
	if !ok {
		return Info{}, fmt.Errorf("%s: %w", peerID, ErrUserNotFound)
	}
	producer, ok := peer.VideoProducer()
	if !ok {
		return Info{}, fmt.Errorf("%s: %w", peerID, ErrNoVideoProducer)
	}

	id := fmt.Sprintf("%s-%s-%d", rm.ID, peerID, time.Now().UnixMilli())

	transport, err := rm.Router.CreateTransport(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("create recording transport: %w", err)
	}
	consumer, err := transport.Consume(ctx, producer.ID(), rm.Router.RTPCapabilities())
	if err != nil {
		_ = transport.Close()
		return Info{}, fmt.Errorf("consume for recording: %w", err)
	}

	if err := os.MkdirAll(r.config.Directory, 0o755); err != nil {
		_ = consumer.Close()
		_ = transport.Close()
		return Info{}, fmt.Errorf("create recording directory: %w", err)
	}
	filePath := filepath.Join(r.config.Directory, id+".webm")

	//nolint:gosec // the path is built from server-generated ids
	cmd := exec.Command(r.config.FFmpegPath,
		"-y", "-i", "pipe:0", "-c:v", "copy", "-c:a", "copy", "-f", "webm", filePath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = consumer.Close()
		_ = transport.Close()
		return Info{}, fmt.Errorf("open recording pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		_ = consumer.Close()
		_ = transport.Close()
		return Info{}, fmt.Errorf("start recording process: %w", err)
	}

	sess := &session{
		info: Info{
			ID:        id,
			RoomID:    rm.ID,
			UserID:    peerID,
			FilePath:  filePath,
			StartedAt: time.Now(),
		},
		transport: transport,
		consumer:  consumer,
		cmd:       cmd,
		stdin:     stdin,
	}

	consumer.OnRTP(func(pkt *rtp.Packet) {
		buf, err := pkt.Marshal()
		if err != nil {
			return
		}
		// Write errors after the pipe closes are expected during teardown.
		_, _ = sess.stdin.Write(buf)
	})
	consumer.OnClose(func() {
		go r.remove(id)
	})
	go r.reap(sess)

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()

	log.Info().Str("recording_id", id).Str("room_id", rm.ID).Str("user_id", peerID).
		Str("file", filePath).Msg("recording started")
	return sess.info, nil
}

// Stop ends a recording session and reports where the file landed and how
// long the session ran. Stopping an unknown id is a no-op.
func (r *Recorder) Stop(id string) (Info, time.Duration, bool) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return Info{}, 0, false
	}
	sess.release()
	duration := time.Since(sess.info.StartedAt)
	log.Info().Str("recording_id", id).Dur("duration", duration).Msg("recording stopped")
	return sess.info, duration, true
}

// Status returns the session with the given id if it is live.
func (r *Recorder) Status(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return Info{}, false
	}
	return sess.info, true
}

// All lists every live session.
func (r *Recorder) All() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	infos := make([]Info, 0, len(r.sessions))
	for _, sess := range r.sessions {
		infos = append(infos, sess.info)
	}
	return infos
}

// remove drops and releases a session without treating an unknown id as an
// error. Used when the consumer closes underneath the session, e.g. the
// recorded producer went away.
func (r *Recorder) remove(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	sess.release()
	log.Info().Str("recording_id", id).Msg("recording ended by source")
}

// reap waits for the recording process and cleans the session up if it exits
// on its own.
func (r *Recorder) reap(sess *session) {
	if err := sess.cmd.Wait(); err != nil {
		log.Debug().Err(err).Str("recording_id", sess.info.ID).Msg("recording process exited")
	}
	r.remove(sess.info.ID)
}
