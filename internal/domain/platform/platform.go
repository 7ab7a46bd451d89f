// Package platform defines the closed set of external data platforms the
// integration layer pulls from, and the opaque record shape their fetch
// collaborators return.
package platform

import (
	"fmt"
	"strings"

	"github.com/finsight/backend/internal/domain/shared"
)

// Platform identifies a connected external platform.
// The set is closed: adding a platform means adding a constant here and
// extending every exhaustive switch over the type.
type Platform string

const (
	// Shopify is the commerce platform (orders, refunds, products).
	Shopify Platform = "shopify"
	// Meta is the Meta Ads platform (campaign spend reported directly).
	Meta Platform = "meta"
	// Google is the Google Ads platform (campaign spend in cost micros).
	Google Platform = "google"
)

// All returns every supported platform.
func All() []Platform {
	return []Platform{Shopify, Meta, Google}
}

// Parse converts a raw string into a Platform.
// Returns ErrUnsupportedPlatform for anything outside the closed set.
func Parse(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case Shopify:
		return Shopify, nil
	case Meta:
		return Meta, nil
	case Google:
		return Google, nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrUnsupportedPlatform, s)
	}
}

// IsValid returns true if p is one of the supported platforms.
func (p Platform) IsValid() bool {
	switch p {
	case Shopify, Meta, Google:
		return true
	default:
		return false
	}
}

// IsCommerce returns true for platforms that produce orders and refunds.
func (p Platform) IsCommerce() bool {
	return p == Shopify
}

// IsAds returns true for platforms that produce ad spend.
func (p Platform) IsAds() bool {
	return p == Meta || p == Google
}

func (p Platform) String() string {
	return string(p)
}
