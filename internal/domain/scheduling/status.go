package scheduling

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

// Stored appointment status tokens.
const (
	StatusConfirmed = "confirme"
	StatusPending   = "en_attente"
	StatusCancelled = "annule"
	StatusCompleted = "termine"
)

// ErrUnknownStatus is returned for a label outside the accepted input set.
var ErrUnknownStatus = errors.New("unknown appointment status")

// inputLabels are the labels accepted from callers. Completion has no input
// label; it is reached through Service.CompleteAppointment.
var inputLabels = map[string]string{
	"Confirmé":   StatusConfirmed,
	"En attente": StatusPending,
	"Annulé":     StatusCancelled,
}

var displayLabels = map[string]string{
	StatusConfirmed: "Confirmé",
	StatusPending:   "En attente",
	StatusCancelled: "Annulé",
	StatusCompleted: "Terminé",
}

// InputLabels lists the accepted status labels.
var InputLabels = []string{"Confirmé", "En attente", "Annulé"}

func IsInputLabel(label string) bool {
	_, ok := inputLabels[label]
	return ok
}

func IsStatusToken(token string) bool {
	_, ok := displayLabels[token]
	return ok
}

// ToInternalStatus maps an accepted label to its stored token. Matching is
// exact.
func ToInternalStatus(label string) (string, error) {
	token, ok := inputLabels[label]
	if !ok {
		return "", ErrUnknownStatus
	}
	return token, nil
}

// ToDisplayLabel maps a stored token to its label. Unknown tokens come back
// with their first letter upper-cased.
func ToDisplayLabel(token string) string {
	if label, ok := displayLabels[token]; ok {
		return label
	}
	r, size := utf8.DecodeRuneInString(token)
	if r == utf8.RuneError {
		return token
	}
	return string(unicode.ToUpper(r)) + token[size:]
}
