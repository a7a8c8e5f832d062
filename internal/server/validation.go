package server

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"replicas/internal/models"
)

var (
	datafileIDRegex = regexp.MustCompile(`^df-[0-9a-z]{4,32}$`)
	replicaIDRegex  = regexp.MustCompile(`^rp-[0-9a-z]{4,32}$`)
)

func validateDatafileID(id string) bool {
	return datafileIDRegex.MatchString(id)
}

func validateReplicaID(id string) bool {
	return replicaIDRegex.MatchString(id)
}

func validateSize(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", nil
	}
	size, err := strconv.ParseInt(value, 10, 64)
	if err != nil || size < 0 {
		return "", badRequestCode(fmt.Errorf("size must be a non-negative integer"), ErrCodeInvalidSize)
	}
	return strconv.FormatInt(size, 10), nil
}

func validateChecksums(md5sum, sha512sum string) (string, string, error) {
	if err := models.ValidateChecksum(md5sum, models.MD5HexLen); err != nil {
		return "", "", badRequestCode(fmt.Errorf("md5sum: %w", err), ErrCodeInvalidChecksum)
	}
	if err := models.ValidateChecksum(sha512sum, models.SHA512HexLen); err != nil {
		return "", "", badRequestCode(fmt.Errorf("sha512sum: %w", err), ErrCodeInvalidChecksum)
	}
	return models.NormalizeChecksum(md5sum), models.NormalizeChecksum(sha512sum), nil
}

func validateLocation(rawURL, rawProtocol string) (string, string, error) {
	url := strings.TrimSpace(rawURL)
	if err := models.ValidateReplicaURL(url); err != nil {
		return "", "", badRequestCode(err, ErrCodeInvalidURL)
	}
	protocol, err := models.ParseProtocol(rawProtocol)
	if err != nil {
		return "", "", badRequestCode(err, ErrCodeInvalidProtocol)
	}
	return url, protocol, nil
}
