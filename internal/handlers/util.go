package handlers

import (
	"strconv"

	"github.com/google/uuid"
)

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
