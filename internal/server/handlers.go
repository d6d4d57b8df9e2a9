package server

import (
	"net/http"

	"forexBot/internal/ports"
)

type handlers struct {
	bots     BotController
	accounts AccountAPI
	logger   ports.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "Forex bot API is running", nil)
}

func (h *handlers) startBot(w http.ResponseWriter, r *http.Request) {
	status, err := h.bots.Start(r.Context(), userFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "start bot")
		return
	}
	writeOK(w, "Bot started", toBotStatusView(status))
}

func (h *handlers) stopBot(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	if err := h.bots.Stop(r.Context(), userID); err != nil {
		h.fail(w, r, err, "stop bot")
		return
	}
	writeOK(w, "Bot stopped", toBotStatusView(h.bots.Status(userID)))
}

func (h *handlers) botStatus(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "Bot status", toBotStatusView(h.bots.Status(userFrom(r.Context()))))
}

func (h *handlers) balance(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.GetBalance(r.Context(), userFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "get balance")
		return
	}
	writeOK(w, "Balance retrieved", accountView{ID: acc.ID, Username: acc.Username, Balance: acc.Balance, Currency: acc.Currency})
}

func (h *handlers) activities(w http.ResponseWriter, r *http.Request) {
	positions, err := h.accounts.ListActivities(r.Context(), userFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "list activities")
		return
	}
	writeOK(w, "Activities retrieved", toPositionViews(positions))
}

func (h *handlers) openPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.accounts.ListOpenPositions(r.Context(), userFrom(r.Context()))
	if err != nil {
		h.fail(w, r, err, "list open positions")
		return
	}
	writeOK(w, "Open positions retrieved", toPositionViews(positions))
}

func (h *handlers) openPosition(w http.ResponseWriter, r *http.Request) {
	var body openPositionBody
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err, "open position")
		return
	}
	pos, err := h.accounts.OpenPosition(r.Context(), userFrom(r.Context()), body.toRequest())
	if err != nil {
		h.fail(w, r, err, "open position")
		return
	}
	writeOK(w, "Position opened", toPositionView(pos))
}

func (h *handlers) closePosition(w http.ResponseWriter, r *http.Request) {
	var body closePositionBody
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err, "close position")
		return
	}
	pos, err := h.accounts.ClosePosition(r.Context(), userFrom(r.Context()), body.PositionID)
	if err != nil {
		h.fail(w, r, err, "close position")
		return
	}
	writeOK(w, "Position closed", toPositionView(pos))
}

func (h *handlers) predict(w http.ResponseWriter, r *http.Request) {
	var body predictBody
	if err := decodeBody(r, &body); err != nil {
		h.fail(w, r, err, "predict")
		return
	}
	prediction, err := h.accounts.Predict(r.Context(), body.Prices)
	if err != nil {
		h.fail(w, r, err, "predict")
		return
	}
	writeOK(w, "Prediction retrieved", predictionView{PredictedPrices: prediction.PredictedPrices})
}

func (h *handlers) marketData(w http.ResponseWriter, r *http.Request) {
	series, err := h.accounts.MarketSeries(r.Context())
	if err != nil {
		h.fail(w, r, err, "market data")
		return
	}
	writeOK(w, "Market data retrieved", toSeriesView(series))
}

// fail logs server-side errors and writes the mapped response.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	if statusFor(err) == http.StatusInternalServerError {
		h.logger.Error(r.Context(), err, "Request failed: "+action, map[string]interface{}{"userID": userFrom(r.Context())})
	}
	writeError(w, err)
}
