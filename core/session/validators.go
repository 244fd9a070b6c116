package session

import (
	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/track"
)

func (bs *BeginSession) Validate(validate *validator.Validate) error {
	bs.UserID = core.CleanString(bs.UserID)
	return validate.Struct(bs)
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	na.UserID = core.CleanString(na.UserID)
	na.SessionID = core.CleanString(na.SessionID)
	na.Type = core.CleanString(na.Type, true /* lower */)
	if err := validate.Struct(na); err != nil {
		return err
	}
	if !track.IsValidType(na.Type) {
		return core.NewValidationError(ErrUnknownActivity,
			core.FieldError{Field: "activity_type", Error: ErrUnknownActivity.Error()})
	}
	return nil
}

func (r *Ref) Validate(validate *validator.Validate) error {
	r.UserID = core.CleanString(r.UserID)
	r.SessionID = core.CleanString(r.SessionID)
	return validate.Struct(r)
}
