package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/reward"
)

type (
	rewardApi struct {
		svc *reward.Service
	}

	LeaderboardRequest struct {
		Limit int `query:"limit"`
	}
)

func registerRewardAPI(g *echo.Group, deps ServerDeps) {
	api := rewardApi{svc: deps.RewardSvc}

	g.GET("/me", api.me)
	g.GET("/leaderboard", api.leaderboard)
}

func (api *rewardApi) me(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "summarizing rewards")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *rewardApi) leaderboard(ctx echo.Context) error {
	var req LeaderboardRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to LeaderboardRequest")
	}
	standings, err := api.svc.Leaderboard(ctx.Request().Context(), req.Limit)
	if err != nil {
		return errors.Wrap(err, "loading leaderboard")
	}
	return ctx.JSON(http.StatusOK, standings)
}
