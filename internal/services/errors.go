package services

import (
	stderrors "errors"

	"github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/progress"
	"github.com/vytor/kotoflash/internal/review"
	"github.com/vytor/kotoflash/internal/syncer"
)

// mapError turns package sentinels into AppErrors. AppErrors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, review.ErrInvalidQuality):
		return errors.WrapValidationError("quality", err)
	case stderrors.Is(err, models.ErrUnknownSection):
		return errors.WrapValidationError("section", err)
	case stderrors.Is(err, models.ErrUnknownActivity):
		return errors.WrapValidationError("activityType", err)
	case stderrors.Is(err, progress.ErrEmptyItemID):
		return errors.WrapValidationError("itemId", err)
	case stderrors.Is(err, progress.ErrInvalidSession):
		return errors.WrapValidationError("session", err)
	case stderrors.Is(err, progress.ErrInvalidPreferences):
		return errors.WrapValidationError("preferences", err)
	case stderrors.Is(err, progress.ErrInvalidItem):
		return errors.WrapValidationError("item", err)
	case stderrors.Is(err, syncer.ErrNoRemote),
		stderrors.Is(err, syncer.ErrSignedOut),
		stderrors.Is(err, syncer.ErrOffline):
		return errors.NewSyncRejectedError(err)
	}
	return errors.NewInternalError(err)
}
