package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/session"
)

type sessionApi struct {
	svc        *session.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerSessionAPI(
	g *echo.Group,
	svc *session.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := sessionApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	sg := g.Group("/sessions")
	sg.POST("/start", api.begin)
	sg.POST("/activity", api.recordActivity)
	sg.POST("/heartbeat", api.heartbeat)
	sg.POST("/activity/end", api.endActivity)
	sg.POST("/end", api.end)
	sg.GET("/stats/:uid", api.stats)
}

// Handlers

func (api *sessionApi) begin(ctx echo.Context) error {
	var data session.BeginSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BeginSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, existing, err := api.svc.Begin(ctx.Request().Context(), data.UserID)
	if err != nil {
		return errors.Wrap(err, "beginning session")
	}

	return ctx.JSON(http.StatusOK, echo.Map{
		"session_id":       sess.ID,
		"existing_session": existing,
	})
}

func (api *sessionApi) recordActivity(ctx echo.Context) error {
	var data session.NewActivity
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewActivity")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	act, err := api.svc.RecordActivity(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording activity")
	}

	return ctx.JSON(http.StatusCreated, act)
}

func (api *sessionApi) heartbeat(ctx echo.Context) error {
	var data session.Ref
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Ref")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Heartbeat(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "heartbeat")
	}

	return ctx.JSON(http.StatusOK, echo.Map{"updated": true})
}

func (api *sessionApi) endActivity(ctx echo.Context) error {
	var data session.Ref
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Ref")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.EndActivity(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "ending activity")
	}

	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) end(ctx echo.Context) error {
	var data session.Ref
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Ref")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.End(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "ending session")
	}

	return ctx.JSON(http.StatusOK, res)
}

func (api *sessionApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), ctx.Param("uid"))
	if err != nil {
		return errors.Wrap(err, "querying stats")
	}

	return ctx.JSON(http.StatusOK, stats)
}
