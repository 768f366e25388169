package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NormalizeRoomCode trims and upper-cases a human-entered room code
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode checks a normalized room code
func ValidRoomCode(code string) bool {
	if len(code) < MinRoomCodeLength || len(code) > MaxRoomCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(roomCodeAlphabet, r) {
			return false
		}
	}
	return true
}

// GenerateRoomCode returns a random upper-case alphanumeric code of length n
func GenerateRoomCode(n int) (string, error) {
	return generateRoomCode(rand.Reader, n)
}

func generateRoomCode(src io.Reader, n int) (string, error) {
	if n <= 0 {
		n = DefaultRoomCodeLength
	}
	var sb strings.Builder
	limit := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(src, limit)
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		sb.WriteByte(roomCodeAlphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// ChannelName returns the realtime channel backing a room
func ChannelName(code string) string {
	return RoomChannelPrefix + NormalizeRoomCode(code)
}
