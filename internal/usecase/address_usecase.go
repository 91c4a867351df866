package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AddressDTO struct {
	ID            int64   `json:"id"`
	UserID        int64   `json:"user_id"`
	RecipientName string  `json:"recipient_name"`
	Street        string  `json:"street"`
	BuildingName  string  `json:"building_name"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Country       string  `json:"country"`
	PostalCode    string  `json:"postal_code"`
	Phone         string  `json:"phone"`
	IsDefault     bool    `json:"is_default"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     *string `json:"updated_at,omitempty"`
}

// 作成・更新で同じ形
type AddressInput struct {
	RecipientName string `json:"recipient_name"`
	Street        string `json:"street"`
	BuildingName  string `json:"building_name"`
	City          string `json:"city"`
	State         string `json:"state"`
	Country       string `json:"country"`
	PostalCode    string `json:"postal_code"`
	Phone         string `json:"phone"`
}

func (in AddressInput) validate() error {
	required := []struct{ name, v string }{
		{"recipient_name", in.RecipientName},
		{"street", in.Street},
		{"city", in.City},
		{"state", in.State},
		{"country", in.Country},
		{"postal_code", in.PostalCode},
	}
	for _, f := range required {
		if strings.TrimSpace(f.v) == "" {
			return newError(ErrInvalidArgument, "%s required", f.name)
		}
	}
	return nil
}

type AddressUsecase struct {
	addresses repo.AddressRepository
}

func NewAddressUsecase(addresses repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]AddressDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}

	out := make([]AddressDTO, 0, len(list))
	for i := range list {
		out = append(out, toAddressDTO(&list[i]))
	}
	return out, nil
}

func (u *AddressUsecase) Create(ctx context.Context, userID int64, in AddressInput) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, ErrUnauthorized
	}
	//入力チェック
	if err := in.validate(); err != nil {
		return AddressDTO{}, err
	}

	now := time.Now()
	a := model.Address{
		UserID:        userID,
		RecipientName: strings.TrimSpace(in.RecipientName),
		Street:        strings.TrimSpace(in.Street),
		BuildingName:  strings.TrimSpace(in.BuildingName),
		City:          strings.TrimSpace(in.City),
		State:         strings.TrimSpace(in.State),
		Country:       strings.TrimSpace(in.Country),
		PostalCode:    strings.TrimSpace(in.PostalCode),
		Phone:         strings.TrimSpace(in.Phone),
		IsDefault:     false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := u.addresses.Create(ctx, a)
	if err != nil {
		return AddressDTO{}, storeError(err)
	}
	return toAddressDTO(&created), nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID int64, addressID int64, in AddressInput) error {
	if userID <= 0 {
		return ErrUnauthorized
	}
	if addressID <= 0 {
		return newError(ErrInvalidArgument, "invalid address id")
	}
	if err := in.validate(); err != nil {
		return err
	}

	//所有チェック（本人のみ）
	current, err := u.ownedAddress(ctx, userID, addressID)
	if err != nil {
		return err
	}

	current.RecipientName = strings.TrimSpace(in.RecipientName)
	current.Street = strings.TrimSpace(in.Street)
	current.BuildingName = strings.TrimSpace(in.BuildingName)
	current.City = strings.TrimSpace(in.City)
	current.State = strings.TrimSpace(in.State)
	current.Country = strings.TrimSpace(in.Country)
	current.PostalCode = strings.TrimSpace(in.PostalCode)
	current.Phone = strings.TrimSpace(in.Phone)
	current.UpdatedAt = time.Now()

	if err := u.addresses.Update(ctx, current); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrAddressNotFound, "address %d", addressID)
		}
		return storeError(err)
	}
	return nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return ErrUnauthorized
	}
	if addressID <= 0 {
		return newError(ErrInvalidArgument, "invalid address id")
	}

	if _, err := u.ownedAddress(ctx, userID, addressID); err != nil {
		return err
	}

	if err := u.addresses.Delete(ctx, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrAddressNotFound, "address %d", addressID)
		}
		//注文が参照中などで削除できない 409
		return newError(ErrConflict, "address %d is in use", addressID)
	}
	return nil
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return ErrUnauthorized
	}
	if addressID <= 0 {
		return newError(ErrInvalidArgument, "invalid address id")
	}

	if _, err := u.ownedAddress(ctx, userID, addressID); err != nil {
		return err
	}

	//user内でdefaultは1つ
	if err := u.addresses.SetDefault(ctx, userID, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return newError(ErrAddressNotFound, "address %d", addressID)
		}
		return storeError(err)
	}
	return nil
}

// 他人の住所は存在しないものとして扱う
func (u *AddressUsecase) ownedAddress(ctx context.Context, userID, addressID int64) (model.Address, error) {
	a, err := u.addresses.FindByIDForUser(ctx, addressID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Address{}, newError(ErrAddressNotFound, "address %d", addressID)
	}
	if err != nil {
		return model.Address{}, storeError(err)
	}
	return a, nil
}

func toAddressDTO(a *model.Address) AddressDTO {
	dto := AddressDTO{
		ID:            a.ID,
		UserID:        a.UserID,
		RecipientName: a.RecipientName,
		Street:        a.Street,
		BuildingName:  a.BuildingName,
		City:          a.City,
		State:         a.State,
		Country:       a.Country,
		PostalCode:    a.PostalCode,
		Phone:         a.Phone,
		IsDefault:     a.IsDefault,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
	t := a.UpdatedAt.Format(time.RFC3339)
	dto.UpdatedAt = &t
	return dto
}
