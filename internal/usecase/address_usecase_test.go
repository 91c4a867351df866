package usecase_test

import (
	"context"
	"testing"

	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAddress() usecase.AddressInput {
	return usecase.AddressInput{
		RecipientName: "Hanako",
		Street:        " 4-5-6 ",
		City:          "Osaka",
		State:         "Osaka",
		Country:       "JP",
		PostalCode:    "530-0001",
	}
}

func TestAddressUsecase_CreateAndList(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	uc := usecase.NewAddressUsecase(s.Addresses())

	created, err := uc.Create(ctx, 1, validAddress())
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "4-5-6", created.Street)
	assert.False(t, created.IsDefault)

	_, err = uc.Create(ctx, 2, validAddress())
	require.NoError(t, err)

	list, err := uc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestAddressUsecase_Create_RequiresFields(t *testing.T) {
	uc := usecase.NewAddressUsecase(newMemStore().Addresses())

	in := validAddress()
	in.City = " "
	_, err := uc.Create(context.Background(), 1, in)
	assert.ErrorIs(t, err, usecase.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "city required")

	_, err = uc.Create(context.Background(), 0, validAddress())
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}

func TestAddressUsecase_OwnershipIsEnforced(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	uc := usecase.NewAddressUsecase(s.Addresses())

	mine, err := uc.Create(ctx, 1, validAddress())
	require.NoError(t, err)

	//他人からは存在しない扱い
	assert.ErrorIs(t, uc.Update(ctx, 2, mine.ID, validAddress()), usecase.ErrAddressNotFound)
	assert.ErrorIs(t, uc.Delete(ctx, 2, mine.ID), usecase.ErrAddressNotFound)
	assert.ErrorIs(t, uc.SetDefault(ctx, 2, mine.ID), usecase.ErrAddressNotFound)

	in := validAddress()
	in.City = "Kyoto"
	require.NoError(t, uc.Update(ctx, 1, mine.ID, in))

	list, err := uc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Kyoto", list[0].City)
}

func TestAddressUsecase_SetDefault_OnlyOne(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	uc := usecase.NewAddressUsecase(s.Addresses())

	a, err := uc.Create(ctx, 1, validAddress())
	require.NoError(t, err)
	b, err := uc.Create(ctx, 1, validAddress())
	require.NoError(t, err)

	require.NoError(t, uc.SetDefault(ctx, 1, a.ID))
	require.NoError(t, uc.SetDefault(ctx, 1, b.ID))

	list, err := uc.List(ctx, 1)
	require.NoError(t, err)
	defaults := 0
	for _, x := range list {
		if x.IsDefault {
			defaults++
			assert.Equal(t, b.ID, x.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestAddressUsecase_Delete(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	uc := usecase.NewAddressUsecase(s.Addresses())

	a, err := uc.Create(ctx, 1, validAddress())
	require.NoError(t, err)

	require.NoError(t, uc.Delete(ctx, 1, a.ID))
	assert.ErrorIs(t, uc.Delete(ctx, 1, a.ID), usecase.ErrAddressNotFound)
}
