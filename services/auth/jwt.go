package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"braintree-checkout-api/logger"
	"braintree-checkout-api/models"
)

const (
	DefaultAccessTokenDuration = 15 * time.Minute
	RefreshTokenDuration       = 7 * 24 * time.Hour
	CustomerTokenDuration      = 30 * time.Minute

	tokenTypeAccess   = "access"
	tokenTypeRefresh  = "refresh"
	tokenTypeCustomer = "customer"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvalidToken       = errors.New("invalid token")
)

// AdminStore loads admin accounts for login and refresh.
type AdminStore interface {
	GetAdminUser(ctx context.Context, username string) (*models.AdminUser, string, error)
}

type JWTService struct {
	secretKey []byte
	issuer    string
	accessTTL time.Duration
	store     AdminStore
	now       func() time.Time
}

type Claims struct {
	Username   string  `json:"username,omitempty"`
	Email      string  `json:"email,omitempty"`
	IsAdmin    bool    `json:"is_admin"`
	StoreIDs   []int64 `json:"store_ids,omitempty"`
	CustomerID int64   `json:"customer_id,omitempty"`
	TokenType  string  `json:"token_type"`
	jwt.RegisteredClaims
}

func NewJWTService(secretKey, issuer string, accessTTL time.Duration, store AdminStore) *JWTService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenDuration
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		accessTTL: accessTTL,
		store:     store,
		now:       time.Now,
	}
}

// Authenticate checks an admin password and issues an access/refresh pair.
func (j *JWTService) Authenticate(ctx context.Context, username, password string) (*models.AdminAuthResponse, error) {
	user, hash, err := j.store.GetAdminUser(ctx, username)
	if err != nil {
		logger.Warn(ctx, "Admin login failed", zap.String("username", username), zap.Error(err))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		logger.Warn(ctx, "Admin login failed", zap.String("username", username), zap.String("reason", "password mismatch"))
		return nil, ErrInvalidCredentials
	}

	return j.issue(*user)
}

func (j *JWTService) issue(user models.AdminUser) (*models.AdminAuthResponse, error) {
	accessToken, err := j.GenerateToken(user, tokenTypeAccess, j.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}

	refreshToken, err := j.GenerateToken(user, tokenTypeRefresh, RefreshTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	return &models.AdminAuthResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    j.now().Add(j.accessTTL),
		User:         user,
	}, nil
}

func (j *JWTService) GenerateToken(user models.AdminUser, tokenType string, duration time.Duration) (string, error) {
	now := j.now()
	claims := Claims{
		Username:  user.Username,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		StoreIDs:  user.StoreIDs,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTService) parse(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateToken checks an access token and returns the admin it carries.
func (j *JWTService) ValidateToken(tokenString string) (*models.AdminUser, error) {
	claims, err := j.parse(tokenString, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	return &models.AdminUser{
		Username: claims.Username,
		Email:    claims.Email,
		IsAdmin:  claims.IsAdmin,
		StoreIDs: claims.StoreIDs,
	}, nil
}

// RefreshToken reloads the admin so removed or narrowed accounts lose access
// at the next refresh.
func (j *JWTService) RefreshToken(ctx context.Context, refreshTokenString string) (*models.AdminAuthResponse, error) {
	claims, err := j.parse(refreshTokenString, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, _, err := j.store.GetAdminUser(ctx, claims.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return j.issue(*user)
}

// IssueCustomerToken signs the storefront's statement that customerID is
// logged in on storeID. The host shop calls it after its own login.
func (j *JWTService) IssueCustomerToken(customerID, storeID int64) (string, error) {
	if customerID <= 0 {
		return "", ErrInvalidToken
	}

	now := j.now()
	claims := Claims{
		StoreIDs:   []int64{storeID},
		CustomerID: customerID,
		TokenType:  tokenTypeCustomer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(customerID, 10),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(CustomerTokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
}

// ValidateCustomerToken returns the customer a storefront token vouches for.
// The token must have been issued for storeID.
func (j *JWTService) ValidateCustomerToken(tokenString string, storeID int64) (int64, error) {
	claims, err := j.parse(tokenString, tokenTypeCustomer)
	if err != nil {
		return 0, err
	}
	if claims.CustomerID <= 0 || len(claims.StoreIDs) != 1 || claims.StoreIDs[0] != storeID {
		return 0, ErrInvalidToken
	}
	return claims.CustomerID, nil
}
