// Package media talks to the LiveKit-compatible media-routing service: it mints
// room access tokens and creates rooms, updates their metadata and lists their
// participants.
package media

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingCredentials = errors.New("media api key and secret are required")
	ErrInvalidToken       = errors.New("invalid access token")
)

const adminTokenTTL = 10 * time.Minute

// Grants are the room capabilities carried by an access credential.
type Grants struct {
	Join        bool `json:"join"`
	Publish     bool `json:"publish"`
	Subscribe   bool `json:"subscribe"`
	PublishData bool `json:"publishData"`
}

// ParticipantGrants is what candidates and agents get.
func ParticipantGrants() Grants {
	return Grants{Join: true, Publish: true, Subscribe: true, PublishData: true}
}

// AccessCredential is never stored; a new one is minted per connection attempt.
type AccessCredential struct {
	Identity  string    `json:"identity"`
	Name      string    `json:"name,omitempty"`
	Room      string    `json:"roomName"`
	Grants    Grants    `json:"grants"`
	ExpiresAt time.Time `json:"expiresAt"`
	Token     string    `json:"token"`
}

// VideoGrant mirrors the "video" claim understood by the media service.
type VideoGrant struct {
	Room           string `json:"room,omitempty"`
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	RoomCreate     bool   `json:"roomCreate,omitempty"`
	RoomAdmin      bool   `json:"roomAdmin,omitempty"`
	RoomList       bool   `json:"roomList,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

type Claims struct {
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access tokens with the media service API secret.
type TokenIssuer struct {
	apiKey string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(apiKey, apiSecret string, ttl time.Duration) (*TokenIssuer, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &TokenIssuer{
		apiKey: apiKey,
		secret: []byte(apiSecret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue mints a participant token for room. Every call yields a distinct token.
func (i *TokenIssuer) Issue(room, identity, name string, grants Grants) (AccessCredential, error) {
	room = strings.TrimSpace(room)
	identity = strings.TrimSpace(identity)
	if room == "" || identity == "" {
		return AccessCredential{}, fmt.Errorf("issue token: room and identity are required")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		Name: strings.TrimSpace(name),
		Video: &VideoGrant{
			Room:           room,
			RoomJoin:       grants.Join,
			CanPublish:     boolPtr(grants.Publish),
			CanSubscribe:   boolPtr(grants.Subscribe),
			CanPublishData: boolPtr(grants.PublishData),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   identity,
			ID:        uuid.NewString(),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := i.sign(claims)
	if err != nil {
		return AccessCredential{}, err
	}
	return AccessCredential{
		Identity:  identity,
		Name:      claims.Name,
		Room:      room,
		Grants:    grants,
		ExpiresAt: expiresAt,
		Token:     signed,
	}, nil
}

// AdminToken authorizes room management calls against the service API.
func (i *TokenIssuer) AdminToken(room string) (string, error) {
	now := i.now()
	return i.sign(Claims{
		Video: &VideoGrant{
			Room:       strings.TrimSpace(room),
			RoomCreate: true,
			RoomAdmin:  true,
			RoomList:   true,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			ID:        uuid.NewString(),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
		},
	})
}

// Verify parses a token signed by this issuer.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *TokenIssuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func boolPtr(v bool) *bool { return &v }
