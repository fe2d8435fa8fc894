package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/playvault/backend/internal/models"
)

const qrCodeTTL = 5 * time.Minute

// QRService issues short-lived QR codes a player can show at a payment
// kiosk. Claiming a code opens a normal pending deposit, so kiosk money
// flows through the same approval workflow as everything else.
type QRService struct {
	deposits *DepositService
	redis    *redis.Client
}

func NewQRService(deposits *DepositService, redis *redis.Client) *QRService {
	return &QRService{
		deposits: deposits,
		redis:    redis,
	}
}

// GenerateDepositQR returns the opaque code and a base64 PNG of it.
func (s *QRService) GenerateDepositQR(ctx context.Context, userID string, amount float64) (string, string, error) {
	if amount <= 0 {
		return "", "", ErrInvalidAmount
	}
	if s.redis == nil {
		return "", "", Errorf(CodeInternal, "QR codes are not available")
	}

	qrData := map[string]any{
		"userId":    userID,
		"amount":    amount,
		"timestamp": time.Now().Unix(),
		"nonce":     s.generateNonce(),
	}

	jsonData, err := json.Marshal(qrData)
	if err != nil {
		return "", "", err
	}

	qrCode := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("deposit_qr:%s", qrCode)
	if err := s.redis.Set(ctx, key, jsonData, qrCodeTTL).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(qrCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return qrCode, qrImage, nil
}

// ClaimDepositQR consumes a scanned code and opens the pending deposit it
// encodes. The redis delete makes each code single-use.
func (s *QRService) ClaimDepositQR(ctx context.Context, qrCode string) (*models.Deposit, error) {
	if s.redis == nil {
		return nil, Errorf(CodeInternal, "QR codes are not available")
	}

	key := fmt.Sprintf("deposit_qr:%s", qrCode)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, Errorf(CodeNotFound, "invalid or expired QR code")
	}
	if err != nil {
		return nil, err
	}

	var payload struct {
		UserID string  `json:"userId"`
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	// The code was minted by its owner, so the claim acts as that player.
	owner := models.Principal{AccountID: payload.UserID, Role: models.RoleUser}
	return s.deposits.Request(ctx, owner, payload.UserID, payload.Amount, "")
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
