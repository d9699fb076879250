package learnview

import (
	"errors"
	"fmt"

	pkgerrors "github.com/yungbote/neurobridge-learnview/internal/pkg/errors"
)

var (
	// ErrReconcileInFlight is returned to a Load that arrives while another is running.
	ErrReconcileInFlight = errors.New("reconciliation already in flight")
	// ErrUpgradeRequired means the difficulty needs a premium entitlement and
	// nothing suitable exists in the library.
	ErrUpgradeRequired = errors.New("upgrade required for this difficulty")
	ErrSessionClosed   = errors.New("learn session closed")
	ErrSessionNotFound = fmt.Errorf("learn session %w", pkgerrors.ErrNotFound)
	ErrLessonNotFound  = fmt.Errorf("lesson %w", pkgerrors.ErrNotFound)
	ErrNoCourse        = errors.New("no course loaded")
)

// LessonFailureMessage replaces the body of a lesson whose generation failed.
const LessonFailureMessage = "Failed to load lesson content. Please try again."
