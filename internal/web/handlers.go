package web

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mvessey/crowd-trader/internal/storage"
)

type PositionView struct {
	Asset         string  `json:"asset"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	PnLPercent    float64 `json:"pnl_percent"`
}

type PortfolioView struct {
	TotalValue  float64        `json:"total_value"`
	Cash        float64        `json:"cash"`
	RealizedPnL float64        `json:"realized_pnl"`
	Positions   []PositionView `json:"positions"`
	Mode        string         `json:"mode"`
}

type DashboardData struct {
	Portfolio     PortfolioView
	RecentSignals []storage.SignalRecord
	RecentTrades  []storage.Trade
	Mode          string
	Watchlist     string
}

func (s *Server) buildPortfolio() (PortfolioView, error) {
	view := PortfolioView{Mode: s.config.Execution.Mode}

	positions, err := s.repo.GetPortfolio()
	if err != nil {
		return view, err
	}

	for _, pos := range positions {
		if pos.Asset == storage.CashAsset {
			view.Cash = pos.Quantity
			view.TotalValue += pos.Quantity
			view.RealizedPnL += pos.RealizedPnL
			continue
		}
		view.RealizedPnL += pos.RealizedPnL
		if pos.Quantity <= 0 {
			continue
		}
		pv := PositionView{
			Asset:         pos.Asset,
			Quantity:      pos.Quantity,
			AvgEntryPrice: pos.AvgEntryPrice,
			CurrentPrice:  pos.CurrentPrice,
			UnrealizedPnL: pos.UnrealizedPnL,
		}
		if pos.AvgEntryPrice > 0 {
			pv.PnLPercent = (pos.CurrentPrice - pos.AvgEntryPrice) / pos.AvgEntryPrice * 100
		}
		view.TotalValue += pos.Quantity * pos.CurrentPrice
		view.Positions = append(view.Positions, pv)
	}

	return view, nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := DashboardData{
		Mode:      strings.ToUpper(s.config.Execution.Mode),
		Watchlist: strings.Join(s.config.Watchlist, ", "),
	}

	portfolio, err := s.buildPortfolio()
	if err != nil {
		s.logger.Error("build portfolio for dashboard", "error", err)
	} else {
		data.Portfolio = portfolio
	}

	if signals, err := s.repo.GetRecentSignals(20); err == nil {
		data.RecentSignals = signals
	}
	if trades, err := s.repo.GetTrades("", s.config.Execution.Mode, 20); err == nil {
		data.RecentTrades = trades
	}

	tmpl, err := template.New("dashboard").Funcs(template.FuncMap{
		"money": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
		"ts": func(ts int64) string {
			return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04")
		},
	}).Parse(dashboardTemplate)
	if err != nil {
		s.logger.Error("parse template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("execute template", "error", err)
	}
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	portfolio, err := s.buildPortfolio()
	if err != nil {
		s.logger.Error("portfolio api", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, portfolio)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.repo.GetRecentSignals(queryInt(r, "limit", 50))
	if err != nil {
		s.logger.Error("signals api", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, signals)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.repo.GetTrades(r.URL.Query().Get("product"), s.config.Execution.Mode, queryInt(r, "limit", 50))
	if err != nil {
		s.logger.Error("trades api", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "1h"
	}

	candles, err := s.repo.GetCandles(r.PathValue("product"), timeframe, queryInt(r, "limit", 100), 0)
	if err != nil {
		s.logger.Error("candles api", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, candles)
}

func (s *Server) handleDailyPnL(w http.ResponseWriter, r *http.Request) {
	rows, err := s.repo.GetDailyPnL(queryInt(r, "limit", 30))
	if err != nil {
		s.logger.Error("daily pnl api", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, rows)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode json response", "error", err)
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
