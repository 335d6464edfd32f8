package repositories

import (
	"splitpay/internal/models"

	"gorm.io/gorm"
)

type UserRepository interface {
	Create(user *models.User) error
	FindByID(id string) (*models.User, error)
	FindByStripeID(stripeID string) (*models.User, error)
	FindByBankingID(bankingID string) (*models.User, error)
	FindByAuthRef(authRef string) (*models.User, error)
	Save(user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) FindByID(id string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "id = ?", id).Error
	return &user, err
}

func (r *userRepository) FindByStripeID(stripeID string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "stripe_id = ?", stripeID).Error
	return &user, err
}

func (r *userRepository) FindByBankingID(bankingID string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "banking_id = ?", bankingID).Error
	return &user, err
}

func (r *userRepository) FindByAuthRef(authRef string) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, "auth_ref = ?", authRef).Error
	return &user, err
}

func (r *userRepository) Save(user *models.User) error {
	return r.db.Save(user).Error
}
