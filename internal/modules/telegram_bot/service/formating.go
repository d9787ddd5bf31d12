package service

import (
	"fmt"
	"strings"
	"time"

	"liquidation_bot/internal/models"
	"liquidation_bot/internal/runner"

	"github.com/shopspring/decimal"
)

func stateEmoji(s models.OrderState) string {
	switch s {
	case models.OrderFilled:
		return "✅"
	case models.OrderCancelled:
		return "🚫"
	case models.OrderTimedOut:
		return "⏳"
	case models.OrderRejected:
		return "❌"
	}
	return "•"
}

func upper(s string) string { return strings.ToUpper(s) }

func formatOrderReport(r models.OrderReport, quote string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", stateEmoji(r.State), upper(r.Currency), r.State)
	fmt.Fprintf(&b, "Ордер: %s (%s)\n", orDash(r.OrderID), r.Type)
	fmt.Fprintf(&b, "Продано: %s из %s\n", r.ExecutedQuantity.String(), r.Submitted.String())
	fmt.Fprintf(&b, "Выручка: %s %s\n", r.Proceeds.StringFixed(2), upper(quote))
	if r.AvgPrice.IsPositive() {
		fmt.Fprintf(&b, "Средняя цена: %s\n", r.AvgPrice.String())
	}
	if r.State == models.OrderTimedOut {
		b.WriteString("⚠️ Ордер может висеть на бирже, проверь вручную\n")
	}
	if r.Reason != "" {
		fmt.Fprintf(&b, "Причина: %s\n", r.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSweep(r models.SweepResult, quote string) string {
	var b strings.Builder

	head := "✅ Свип завершён"
	if !r.Success {
		head = "❌ Свип неуспешен"
	}
	fmt.Fprintf(&b, "%s (%s)\n", head, r.Trigger)
	fmt.Fprintf(&b, "Обработано: %d, продано: %d, ошибок: %d\n", r.TotalProcessed, r.SuccessfulSales, r.FailedSales)
	fmt.Fprintf(&b, "Выручка: %s %s\n", r.Proceeds.StringFixed(2), upper(quote))
	if d := r.FinishedAt.Sub(r.StartedAt); d > 0 {
		fmt.Fprintf(&b, "Длительность: %s\n", d.Round(time.Second))
	}

	if len(r.Failures) > 0 {
		b.WriteString("\nОшибки:\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "- %s: %s\n", upper(f.Currency), f.Reason)
		}
	}
	if len(r.Skipped) > 0 {
		b.WriteString("\nПропущено:\n")
		for _, s := range r.Skipped {
			fmt.Fprintf(&b, "- %s: %s\n", upper(s.Currency), s.Reason)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatPlan(p runner.Plan, quote string) string {
	if len(p.Scores) == 0 && len(p.Skipped) == 0 {
		return "📭 Продавать нечего"
	}

	var b strings.Builder
	total := decimal.Zero
	if len(p.Scores) > 0 {
		b.WriteString("📊 К продаже:\n")
		for _, s := range p.Scores {
			total = total.Add(s.EstimatedUSD)
			fmt.Fprintf(&b, "%d. %s %s ≈ $%s\n", s.Rank, upper(s.Currency), s.Balance.String(), s.EstimatedUSD.StringFixed(2))
		}
		fmt.Fprintf(&b, "Итого ≈ $%s (%s)\n", total.StringFixed(2), upper(quote))
	}
	if len(p.Skipped) > 0 {
		b.WriteString("\nПропущено:\n")
		for _, s := range p.Skipped {
			fmt.Fprintf(&b, "- %s: %s\n", upper(s.Currency), s.Reason)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatStatus(recent []models.SweepResult, inFlight []models.OrderRecord, quote string) string {
	var b strings.Builder

	if len(recent) == 0 {
		b.WriteString("ℹ️ Свипов ещё не было\n")
	} else {
		b.WriteString("🧾 Последние свипы:\n")
		for _, r := range recent {
			mark := "✅"
			if !r.Success {
				mark = "❌"
			}
			fmt.Fprintf(&b, "%s %s %s: %d/%d, %s %s\n",
				mark, r.StartedAt.UTC().Format("2006-01-02 15:04"), r.Trigger,
				r.SuccessfulSales, r.TotalProcessed, r.Proceeds.StringFixed(2), upper(quote))
		}
	}

	if len(inFlight) == 0 {
		b.WriteString("\nОрдеров в работе нет")
	} else {
		b.WriteString("\n📌 В работе:\n")
		for _, o := range inFlight {
			fmt.Fprintf(&b, "- %s %s %s (%s)\n", upper(o.Symbol), o.SubmittedQuantity.String(), o.State, orDash(o.OrderID))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
