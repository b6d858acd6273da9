// internal/notify/activity.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dangerclosesec/lockity/internal/model"
)

const ActivityTitle = "Locker Activity Alert"

type LockerFinder interface {
	FindBySerial(ctx context.Context, serial string) (*model.Locker, error)
}

// TokenSource lists the device tokens entitled to a locker's activity.
type TokenSource interface {
	TokensForLocker(ctx context.Context, lockerID uint) ([]string, error)
}

type ImageResolver interface {
	ImageURL(ctx context.Context, key string) (string, error)
}

// ActivityNotifier pushes one notification per logged locker action to
// every device of every user holding access on the locker.
type ActivityNotifier struct {
	lockers    LockerFinder
	tokens     TokenSource
	dispatcher Dispatcher
	images     ImageResolver
	logger     *slog.Logger
}

func WithImages(images ImageResolver) func(*ActivityNotifier) {
	return func(n *ActivityNotifier) {
		n.images = images
	}
}

func WithLogger(logger *slog.Logger) func(*ActivityNotifier) {
	return func(n *ActivityNotifier) {
		n.logger = logger
	}
}

func NewActivityNotifier(lockers LockerFinder, tokens TokenSource, dispatcher Dispatcher, opts ...func(*ActivityNotifier)) *ActivityNotifier {
	n := &ActivityNotifier{
		lockers:    lockers,
		tokens:     tokens,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ActivityMessage builds the notification for a logged action. ok is false
// for actions that do not notify.
func ActivityMessage(locker *model.Locker, log *model.LockerLog) (msg Message, ok bool) {
	var verb string
	switch log.Action {
	case model.LockerOpening:
		verb = "was opened"
	case model.LockerClosing:
		verb = "was closed"
	case model.LockerFailedAttempt:
		verb = "had a failed opening attempt"
	default:
		return Message{}, false
	}

	number := log.Locker.CompartmentNumber
	return Message{
		Title: ActivityTitle,
		Body:  fmt.Sprintf("Hey! Compartment %d of locker %s %s", number, locker.SerialNumber, verb),
		Data: map[string]string{
			"lockerId":          strconv.FormatUint(uint64(locker.ID), 10),
			"serialNumber":      locker.SerialNumber,
			"compartmentNumber": strconv.Itoa(number),
			"action":            string(log.Action),
			"type":              "compartment_activity",
		},
	}, true
}

// NotifyLockerActivity sends notifications for the LockerLog documents in
// docs. Other documents are ignored. Failed deliveries are joined into the
// returned error; nothing is retried.
func (n *ActivityNotifier) NotifyLockerActivity(ctx context.Context, serialNumber string, docs []any) error {
	logs := make([]*model.LockerLog, 0, len(docs))
	for _, doc := range docs {
		switch v := doc.(type) {
		case model.LockerLog:
			logs = append(logs, &v)
		case *model.LockerLog:
			logs = append(logs, v)
		}
	}
	if len(logs) == 0 {
		return nil
	}

	locker, err := n.lockers.FindBySerial(ctx, serialNumber)
	if err != nil {
		return fmt.Errorf("resolving locker %s: %w", serialNumber, err)
	}
	tokens, err := n.tokens.TokensForLocker(ctx, locker.ID)
	if err != nil {
		return fmt.Errorf("resolving device tokens for %s: %w", serialNumber, err)
	}
	if len(tokens) == 0 {
		n.logger.Debug("no devices to notify", "serial_number", serialNumber)
		return nil
	}

	var errs []error
	for _, log := range logs {
		msg, ok := ActivityMessage(locker, log)
		if !ok {
			continue
		}
		if log.PhotoPath != "" && n.images != nil {
			url, err := n.images.ImageURL(ctx, log.PhotoPath)
			if err != nil {
				errs = append(errs, fmt.Errorf("signing image for %s: %w", serialNumber, err))
			}
			msg.ImageURL = url
		}

		res, err := n.dispatcher.SendToDevices(ctx, tokens, msg)
		if err != nil {
			errs = append(errs, fmt.Errorf("notifying %s %s: %w", serialNumber, log.Action, err))
			continue
		}
		n.logger.Info("locker activity notified",
			"serial_number", serialNumber,
			"action", log.Action,
			"success", res.SuccessCount,
			"failure", res.FailureCount)
		if res.FailureCount > 0 {
			errs = append(errs, fmt.Errorf("notifying %s %s: %d of %d deliveries failed (tokens %v)",
				serialNumber, log.Action, res.FailureCount, res.SuccessCount+res.FailureCount, res.FailedTokens))
		}
	}
	return errors.Join(errs...)
}
