package mavlink

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/tiiuae/flightplanengine/internal/log"
)

// Uploader delivers a mission file to the drone and waits for its
// acknowledgement.
type Uploader interface {
	Upload(ctx context.Context, flightPlanUUID string, mission []byte) error
}

type SenderError struct {
	Path string
	Err  error
}

func (e *SenderError) Error() string {
	return "mavlink upload of " + e.Path + " failed: " + e.Err.Error()
}

func (e *SenderError) Unwrap() error {
	return e.Err
}

var ErrUploadCancelled = errors.New("upload cancelled")

// Sender uploads one mission at a time.
type Sender struct {
	uploader Uploader
	timeout  time.Duration
	lg       *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	path   string
}

func NewSender(uploader Uploader, timeout time.Duration, lg *log.Logger) *Sender {
	return &Sender{uploader: uploader, timeout: timeout, lg: lg.Component("mavlink")}
}

// Send uploads the file at path on its own goroutine and calls
// completion from there. Starting a new upload cancels the previous one.
func (s *Sender) Send(path, customFlightPlanID string, completion func(error)) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.path = path
	s.mu.Unlock()

	go func() {
		defer cancel()
		err := s.send(ctx, path, customFlightPlanID)
		if err != nil {
			if ctx.Err() == context.Canceled {
				err = ErrUploadCancelled
			}
			s.lg.Warnf("Mavlink: upload of %s failed: %v", customFlightPlanID, err)
			completion(&SenderError{Path: path, Err: err})
			return
		}
		s.lg.Infof("Mavlink: %s accepted by drone", customFlightPlanID)
		completion(nil)
	}()
}

func (s *Sender) send(ctx context.Context, path, customFlightPlanID string) error {
	mission, err := os.ReadFile(path)
	if err != nil {
		return errors.WithMessage(err, "read mission file")
	}
	return s.uploader.Upload(ctx, customFlightPlanID, mission)
}

// Cleanup aborts an in-flight upload and removes its mission file. It is
// safe to call at any time.
func (s *Sender) Cleanup() {
	s.mu.Lock()
	cancel, path := s.cancel, s.path
	s.cancel, s.path = nil, ""
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.lg.Warnf("Mavlink: cleanup %s: %v", path, err)
		}
	}
}
