package auth

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"
)

const testBotToken = "1234567890:test-bot-token"

// signedInitData собирает initData с корректной подписью.
func signedInitData(params url.Values) string {
	params.Set("hash", hex.EncodeToString(signInitData(params, testBotToken)))
	return params.Encode()
}

func TestValidateTelegramWebAppData(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(time.Now().Add(-30*time.Second).Unix(), 10))
	params.Set("query_id", "AAgSx1323")
	params.Set("user", `{"id":123456,"first_name":"Test","username":"testuser"}`)

	vals, err := ValidateTelegramWebAppData(signedInitData(params), testBotToken, 5*time.Minute)
	if err != nil {
		t.Fatalf("valid initData rejected: %v", err)
	}
	if vals.Get("query_id") != "AAgSx1323" {
		t.Errorf("query_id = %s, want AAgSx1323", vals.Get("query_id"))
	}
}

func TestValidateTelegramWebAppDataExpired(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10))
	params.Set("user", `{"id":123456}`)

	_, err := ValidateTelegramWebAppData(signedInitData(params), testBotToken, 5*time.Minute)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("err = %v, want expired", err)
	}
}

func TestValidateTelegramWebAppDataFutureAuthDate(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(time.Now().Add(5*time.Minute).Unix(), 10))
	params.Set("user", `{"id":123456}`)

	_, err := ValidateTelegramWebAppData(signedInitData(params), testBotToken, 5*time.Minute)
	if err == nil || !strings.Contains(err.Error(), "future") {
		t.Fatalf("err = %v, want future auth_date rejected", err)
	}
}

func TestValidateTelegramWebAppDataDefaultTTL(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(time.Now().Add(-10*time.Second).Unix(), 10))
	params.Set("user", `{"id":123456}`)

	// maxAge <= 0 падает на DefaultInitDataTTL.
	if _, err := ValidateTelegramWebAppData(signedInitData(params), testBotToken, 0); err != nil {
		t.Fatalf("fresh initData rejected with default TTL: %v", err)
	}
}

func TestValidateTelegramWebAppDataBadHash(t *testing.T) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	cases := []struct {
		name     string
		initData string
	}{
		{"missing hash", "auth_date=" + now + "&user=1"},
		{"not hex", "auth_date=" + now + "&hash=not-hex"},
		{"wrong signature", "auth_date=" + now + "&hash=" + strings.Repeat("ab", 32)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ValidateTelegramWebAppData(tc.initData, testBotToken, 5*time.Minute); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateTelegramWebAppDataTamperedPayload(t *testing.T) {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
	params.Set("user", `{"id":123456}`)
	initData := signedInitData(params)

	tampered := strings.Replace(initData, "123456", "654321", 1)
	if _, err := ValidateTelegramWebAppData(tampered, testBotToken, 5*time.Minute); err == nil {
		t.Fatal("tampered payload accepted")
	}
}

func TestValidateTelegramWebAppDataMissingAuthDate(t *testing.T) {
	params := url.Values{}
	params.Set("user", `{"id":123456}`)

	_, err := ValidateTelegramWebAppData(signedInitData(params), testBotToken, 5*time.Minute)
	if err == nil || !strings.Contains(err.Error(), "auth_date") {
		t.Fatalf("err = %v, want missing auth_date", err)
	}
}
