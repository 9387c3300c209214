package services

import (
	pkgauth "github.com/BradenHooton/useraccounts/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	pkgauth.BcryptCost = bcrypt.MinCost
}
