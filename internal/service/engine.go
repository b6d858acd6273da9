// internal/service/engine.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/dangerclosesec/lockity/internal/access"
	"github.com/dangerclosesec/lockity/internal/alert"
	"github.com/dangerclosesec/lockity/internal/audit"
	"github.com/dangerclosesec/lockity/internal/domain"
	"github.com/dangerclosesec/lockity/internal/fanout"
	"github.com/dangerclosesec/lockity/internal/model"
	"github.com/dangerclosesec/lockity/internal/repository"
	"github.com/go-playground/validator/v10"
)

// EventQueue accepts batches for the fan-out processor.
type EventQueue interface {
	Enqueue(b fanout.Batch) error
}

// Engine holds the collaborators shared by the access and coordination
// services.
type Engine struct {
	store    *repository.Store
	resolver *access.Resolver
	recorder audit.Recorder
	alerter  alert.Sink
	logger   *slog.Logger
	validate *validator.Validate
}

func NewEngine(
	store *repository.Store,
	resolver *access.Resolver,
	recorder audit.Recorder,
	alerter alert.Sink,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = audit.NoOpRecorder{}
	}
	if alerter == nil {
		alerter = alert.NewLogSink(logger)
	}
	return &Engine{
		store:    store,
		resolver: resolver,
		recorder: recorder,
		alerter:  alerter,
		logger:   logger,
		validate: newValidator(),
	}
}

// Resolver exposes the permission resolver for read-only role checks.
func (e *Engine) Resolver() *access.Resolver {
	return e.resolver
}

// record emits an audit event. A failure is reported but never undoes the
// operation that produced the event.
func (e *Engine) record(ctx context.Context, event *model.AuditEvent) {
	if err := e.recorder.Record(ctx, event); err != nil {
		e.logger.Error("failed to record audit event", "action", event.Action, "error", err)
		e.alerter.NotifyException(context.WithoutCancel(ctx), err, map[string]any{
			"component": "audit",
			"action":    event.Action,
		})
	}
}

// sideEffectFailed reports a failed best-effort side effect.
func (e *Engine) sideEffectFailed(ctx context.Context, what string, err error, fields map[string]any) {
	args := []any{"error", err}
	for k, v := range fields {
		args = append(args, k, v)
	}
	e.logger.Error(what+" failed", args...)

	ctxFields := map[string]any{"component": "service", "side_effect": what}
	for k, v := range fields {
		ctxFields[k] = v
	}
	e.alerter.NotifyException(context.WithoutCancel(ctx), err, ctxFields)
}

// userSnapshot captures a user and their role on lockerID, if any.
func (e *Engine) userSnapshot(ctx context.Context, user *model.User, lockerID uint) (model.UserSnapshot, error) {
	role, _, err := e.resolver.RoleOf(ctx, lockerID, user.ID)
	if err != nil {
		return model.UserSnapshot{}, err
	}
	return model.NewUserSnapshot(user, role), nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validationError turns validator output into an InvalidInput error with a
// per-field detail map.
func validationError(message string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.InvalidInput("%s: %v", message, err)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return domain.InvalidFields(message, fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match the format %s", fe.Param())
	default:
		return fmt.Sprintf("failed the %s check", fe.Tag())
	}
}
