package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader — заголовок с подписью вебхука.
const SignatureHeader = "Stripe-Signature"

// Типы событий процессинга, которые мы обрабатываем. Остальные типы
// подтверждаются без побочных эффектов ради прямой совместимости.
const (
	EventTypePaymentSucceeded = "payment_intent.succeeded"
	EventTypePaymentFailed    = "payment_intent.payment_failed"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
)

// Event — конверт события процессинга.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object IntentObject `json:"object"`
	} `json:"data"`
}

// IntentObject — объект авторизации внутри события. Сумма приходит
// в минимальных единицах валюты процессинга.
type IntentObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Metadata         map[string]string `json:"metadata"`
	ReceiptEmail     string            `json:"receipt_email"`
	LastPaymentError *PaymentError     `json:"last_payment_error"`
}

type PaymentError struct {
	Message string `json:"message"`
}

// ParseEvent разбирает тело вебхука. Вызывается только после проверки подписи.
func ParseEvent(payload []byte) (*Event, error) {
	event := &Event{}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, ErrMalformedEvent
	}
	return event, nil
}

// VerifySignature проверяет подпись вебхука по сырым байтам тела.
// Формат заголовка: "t=<unix>,v1=<hex hmac-sha256>", подписывается строка "<t>.<body>".
// Подпись старше tolerance отклоняется, чтобы исключить replay старых событий.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	var timestamp int64 = -1
	var signatures [][]byte

	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp < 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	if tolerance > 0 {
		age := time.Since(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return ErrInvalidSignature
		}
	}

	expected := computeSignature(payload, secret, timestamp)
	for _, sig := range signatures {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload формирует заголовок подписи. Используется тестами и локальной
// эмуляцией процессинга.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature(payload, secret, ts)))
}

func computeSignature(payload []byte, secret string, timestamp int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return mac.Sum(nil)
}
