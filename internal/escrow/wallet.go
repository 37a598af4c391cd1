package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"
)

var (
	// ErrInsufficientBalance means the wallet cannot cover the requested
	// amount plus the network fee. Expected in some timeout paths, so it
	// is a skip-with-log for callers, not an application failure.
	ErrInsufficientBalance = errors.New("escrow: insufficient wallet balance")

	// ErrBroadcast wraps network or contract-level transfer rejections.
	// The deal stays in its current state; the next scheduled run may retry.
	ErrBroadcast = errors.New("escrow: transfer broadcast failed")
)

// Manager mints one custodial wallet per deal and performs all signed
// operations on it. Seed material crosses this boundary only in
// encrypted form; retry policy belongs to callers.
type Manager struct {
	api     ton.APIClientWrapped
	cipher  *SeedCipher
	feeNano *big.Int
	log     *zap.Logger
}

func NewManager(api ton.APIClientWrapped, cipher *SeedCipher, feeNano *big.Int, log *zap.Logger) *Manager {
	return &Manager{api: api, cipher: cipher, feeNano: feeNano, log: log}
}

// NetworkFee returns the per-settlement fee budget in nanoTON.
func (m *Manager) NetworkFee() *big.Int {
	return new(big.Int).Set(m.feeNano)
}

// CreateWallet generates fresh key material, derives the deterministic
// wallet contract address and returns it together with the sealed seed.
// The plaintext seed never leaves this method.
func (m *Manager) CreateWallet(ctx context.Context) (string, []byte, error) {
	seed := wallet.NewSeed()

	w, err := wallet.FromSeed(m.api, seed, wallet.V3R2)
	if err != nil {
		return "", nil, fmt.Errorf("escrow: deriving wallet: %w", err)
	}

	enc, err := m.cipher.Seal(strings.Join(seed, " "))
	if err != nil {
		return "", nil, err
	}

	addr := w.WalletAddress()
	m.log.Info("escrow wallet created", zap.String("address", addr.String()))
	return addr.String(), enc, nil
}

// Balance decrypts the seed, derives the wallet and queries its on-chain
// balance. An undecryptable seed is ErrSeedDecrypt, never zero; callers
// must not mistake it for an empty wallet. An uninitialized account
// reads as zero.
func (m *Manager) Balance(ctx context.Context, encSeed []byte) (*big.Int, error) {
	w, err := m.deriveWallet(encSeed)
	if err != nil {
		return nil, err
	}
	return m.accountBalance(ctx, w.WalletAddress())
}

// Transfer sends amountNano to dest with a text memo. The current
// balance must cover amount plus the network fee. Failures carry the
// concrete reason; there is no silent retry here.
func (m *Manager) Transfer(ctx context.Context, encSeed []byte, dest string, amountNano *big.Int, memo string) error {
	if amountNano == nil || amountNano.Sign() <= 0 {
		return fmt.Errorf("escrow: invalid transfer amount")
	}

	w, err := m.deriveWallet(encSeed)
	if err != nil {
		return err
	}

	destAddr, err := address.ParseAddr(dest)
	if err != nil {
		return fmt.Errorf("escrow: invalid destination address %q: %w", dest, err)
	}

	balance, err := m.accountBalance(ctx, w.WalletAddress())
	if err != nil {
		return fmt.Errorf("escrow: balance check before transfer: %w", err)
	}

	required := new(big.Int).Add(amountNano, m.feeNano)
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance.String(), required.String())
	}

	if err := w.Transfer(ctx, destAddr, tlb.FromNanoTON(amountNano), memo); err != nil {
		return fmt.Errorf("%w: %v", ErrBroadcast, err)
	}

	m.log.Info("escrow transfer broadcast",
		zap.String("from", w.WalletAddress().String()),
		zap.String("to", destAddr.String()),
		zap.String("amount_nano", amountNano.String()),
		zap.String("memo", memo),
	)
	return nil
}

func (m *Manager) deriveWallet(encSeed []byte) (*wallet.Wallet, error) {
	phrase, err := m.cipher.Open(encSeed)
	if err != nil {
		return nil, err
	}
	w, err := wallet.FromSeed(m.api, strings.Fields(phrase), wallet.V3R2)
	if err != nil {
		// Seed decrypted but does not form a valid wallet: same severity
		// as a decryption failure, surface for manual intervention.
		return nil, fmt.Errorf("%w: %v", ErrSeedDecrypt, err)
	}
	return w, nil
}

func (m *Manager) accountBalance(ctx context.Context, addr *address.Address) (*big.Int, error) {
	block, err := m.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get master block: %w", err)
	}

	account, err := m.api.GetAccount(ctx, block, addr)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	if account == nil || !account.IsActive {
		return big.NewInt(0), nil
	}
	return account.State.Balance.Nano(), nil
}
