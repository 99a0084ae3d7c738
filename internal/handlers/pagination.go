package handlers

import (
	"errors"
	"strconv"

	"thriftstore/internal/store"
)

const (
	defaultPageLimit = int64(20)
	maxPageLimit     = int64(100)
)

var errInvalidPagination = errors.New("invalid pagination params")

func parsePaginationParams(pageStr, limitStr string) (int64, int64, error) {
	page := int64(1)
	limit := defaultPageLimit

	if pageStr != "" {
		p, err := strconv.ParseInt(pageStr, 10, 64)
		if err != nil || p < 1 {
			return 0, 0, errInvalidPagination
		}
		page = p
	}

	if limitStr != "" {
		l, err := strconv.ParseInt(limitStr, 10, 64)
		if err != nil || l < 1 {
			return 0, 0, errInvalidPagination
		}
		limit = l
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	return page, limit, nil
}

func pageFor(page, limit int64) store.Page {
	return store.Page{Skip: (page - 1) * limit, Limit: limit}
}
