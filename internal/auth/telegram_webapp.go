package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultInitDataTTL — максимальный возраст auth_date, если конфиг его
// не задал. Mini-app генерирует initData при каждом открытии, поэтому
// 5 минут хватает с запасом.
const DefaultInitDataTTL = 5 * time.Minute

// clockSkew — допустимое расхождение часов для auth_date из будущего.
const clockSkew = time.Minute

// ValidateTelegramWebAppData проверяет подпись и свежесть initData,
// который mini-app присылает при логине.
// https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app
func ValidateTelegramWebAppData(initData string, botToken string, maxAge time.Duration) (url.Values, error) {
	if maxAge <= 0 {
		maxAge = DefaultInitDataTTL
	}

	vals, err := url.ParseQuery(initData)
	if err != nil {
		return nil, fmt.Errorf("invalid initData format: %w", err)
	}

	// Сначала подпись: auth_date без валидного hash ничего не значит.
	received, err := hex.DecodeString(vals.Get("hash"))
	if err != nil || len(received) == 0 {
		return nil, fmt.Errorf("hash is missing or malformed")
	}
	expected := signInitData(vals, botToken)
	if !hmac.Equal(received, expected) {
		return nil, fmt.Errorf("invalid hash: data integrity check failed")
	}

	authDateStr := vals.Get("auth_date")
	if authDateStr == "" {
		return nil, fmt.Errorf("auth_date is missing from initData")
	}
	unix, err := strconv.ParseInt(authDateStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("auth_date is not a valid unix timestamp")
	}
	authDate := time.Unix(unix, 0)
	if age := time.Since(authDate); age > maxAge {
		return nil, fmt.Errorf("initData expired: auth_date is %s old (max %s)", age.Round(time.Second), maxAge)
	}
	if authDate.After(time.Now().Add(clockSkew)) {
		return nil, fmt.Errorf("auth_date is in the future")
	}

	return vals, nil
}

// signInitData считает HMAC-SHA256 подпись по схеме Telegram:
// пары key=value (кроме hash), отсортированные и склеенные через \n,
// подписываются ключом HMAC("WebAppData", bot_token).
func signInitData(vals url.Values, botToken string) []byte {
	pairs := make([]string, 0, len(vals))
	for key, values := range vals {
		if key == "hash" {
			continue
		}
		for _, v := range values {
			pairs = append(pairs, key+"="+v)
		}
	}
	sort.Strings(pairs)

	secret := hmacSum([]byte("WebAppData"), []byte(botToken))
	return hmacSum(secret, []byte(strings.Join(pairs, "\n")))
}

func hmacSum(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
