package cases

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

// Field labels for the two supported presentation languages. The answer
// model cites these labels verbatim ("Current Page -> Case Details ->
// Action Date"), so the wording is part of the product surface.
var fieldLabels = map[string][]string{
	"en": {
		"Case ID", "Activity Record", "Classification", "Action Type",
		"Action Date", "Start Date", "End Date", "Pay Rate", "Status",
	},
	"fr": {
		"Numéro de cas", "Dossier d'activité", "Classification", "Type d'action",
		"Date d'action", "Date de début", "Date de fin", "Taux de rémunération", "Statut",
	},
}

// Present renders c as the labeled key/value block appended to the prompt
// context. lang selects the label language ("fr" or "en"); anything else
// falls back to English. Output is deterministic: fields appear in a fixed
// order and empty values render as "N/A".
func Present(c *Case, lang string) string {
	labels, ok := fieldLabels[lang]
	if !ok {
		labels = fieldLabels["en"]
	}

	values := []string{
		fmt.Sprintf("%d", c.CaseID),
		fmt.Sprintf("%d", c.ActivityRecord),
		orNA(c.Classification),
		orNA(c.ActionType),
		dateOrNA(c.ActionDate),
		dateOrNA(c.StartDate),
		dateOrNA(c.EndDate),
		rateOrNA(c.PayRate),
		orNA(c.Status),
	}

	var b strings.Builder
	for i, label := range labels {
		fmt.Fprintf(&b, "%s: %s\n", label, values[i])
	}
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func dateOrNA(d pgtype.Date) string {
	if !d.Valid {
		return "N/A"
	}
	return d.Time.Format("2006-01-02")
}

func rateOrNA(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil {
		return "N/A"
	}
	f := new(big.Float).SetInt(n.Int)
	if n.Exp != 0 {
		scale := new(big.Float).SetFloat64(1)
		ten := big.NewFloat(10)
		for i := int32(0); i < abs32(n.Exp); i++ {
			scale.Mul(scale, ten)
		}
		if n.Exp < 0 {
			f.Quo(f, scale)
		} else {
			f.Mul(f, scale)
		}
	}
	return f.Text('f', 2)
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
