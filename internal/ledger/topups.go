package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
)

// TopUpPrompt asks the user to choose a payment channel for Amount.
type TopUpPrompt struct {
	Amount   int64
	Channels []string
}

// ChannelSelection is the draft after a channel was picked, with the account
// the user should pay into.
type ChannelSelection struct {
	Draft   state.Draft
	Payment domain.PaymentAccount
}

type TopUpResult struct {
	UserID  string
	User    domain.Profile
	TopUp   domain.TopUp
	Balance int64
}

// StartTopUp opens a top-up draft for amount.
func (s *Service) StartTopUp(ctx context.Context, user domain.Profile, amount int64) (prompt *TopUpPrompt, err error) {
	defer func() { observe("start_topup", err) }()

	userID := user.UserID
	if err := s.requireAuthorized(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.requireFeature(ctx, domain.FeatureTopUps); err != nil {
		return nil, err
	}

	err = s.withAccount(ctx, userID, func() error {
		st, err := s.session(ctx, userID)
		if err != nil {
			return err
		}
		if st.Restricted() {
			return apperrors.NewAwaitingApprovalError()
		}

		acc, err := s.ensureAccount(ctx, user)
		if err != nil {
			return err
		}
		if acc.PendingTopUp() != nil {
			return apperrors.NewPendingApprovalExistsError()
		}
		if st.HasDraft() {
			return apperrors.NewDraftInProgressError()
		}

		if amount < s.minTopUp {
			return apperrors.NewValidationError("amount", fmt.Sprintf("minimum top-up is %s", notify.FormatMMK(s.minTopUp)))
		}

		now := s.now()
		if _, err := s.transition(ctx, userID, state.StateDraft, func(us *state.UserState) {
			us.Draft = &state.Draft{Amount: amount, CreatedAt: now}
			us.TopUpID = ""
		}); err != nil {
			return err
		}

		prompt = &TopUpPrompt{Amount: amount, Channels: append([]string(nil), domain.Channels...)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("top-up draft started", slog.String("user_id", userID), slog.Int64("amount", amount))
	return prompt, nil
}

// SelectChannel attaches channel to the open draft. Without a draft it is a
// no-op and returns nil.
func (s *Service) SelectChannel(ctx context.Context, userID, channel string) (sel *ChannelSelection, err error) {
	defer func() { observe("select_channel", err) }()

	channel = strings.ToLower(strings.TrimSpace(channel))
	if !domain.IsChannel(channel) {
		return nil, apperrors.NewValidationError("channel", fmt.Sprintf("unknown payment channel %q", channel))
	}

	err = s.withAccount(ctx, userID, func() error {
		st, err := s.session(ctx, userID)
		if err != nil {
			return err
		}
		if !st.HasDraft() {
			return nil
		}

		next, err := s.transition(ctx, userID, state.StateChannelSelected, func(us *state.UserState) {
			us.Draft.Channel = channel
		})
		if err != nil {
			return err
		}

		sel = &ChannelSelection{Draft: *next.Draft}
		return nil
	})
	if err != nil || sel == nil {
		return nil, err
	}

	if s.payments != nil {
		account, err := s.payments.Payment(ctx, channel)
		if err != nil {
			s.log.Error("failed to load payment account", slog.String("channel", channel), slog.Any("error", err))
		}
		sel.Payment = account
	}

	return sel, nil
}

// SubmitProof turns the draft into a pending top-up backed by imageRef and
// restricts the user until an admin decides.
func (s *Service) SubmitProof(ctx context.Context, user domain.Profile, imageRef string, chatID int64) (res *TopUpResult, err error) {
	defer func() { observe("submit_proof", err) }()

	userID := user.UserID
	err = s.withAccount(ctx, userID, func() error {
		st, err := s.session(ctx, userID)
		if err != nil {
			return err
		}
		if st.Restricted() {
			return apperrors.NewAwaitingApprovalError()
		}
		if !st.HasDraft() {
			return apperrors.NewNotFoundError("draft", userID)
		}
		if st.Draft.Channel == "" {
			return apperrors.NewValidationError("channel", "choose a payment channel first")
		}

		acc, err := s.ensureAccount(ctx, user)
		if err != nil {
			return err
		}
		if acc.PendingTopUp() != nil {
			return apperrors.NewPendingApprovalExistsError()
		}

		now := s.now()
		topUp := domain.TopUp{
			ID:        s.ids.next(topUpPrefix, userID, now),
			Amount:    st.Draft.Amount,
			Channel:   st.Draft.Channel,
			Status:    domain.TopUpPending,
			ImageRef:  imageRef,
			CreatedAt: now,
			ChatID:    chatID,
		}

		// Restrict first: a pending top-up must never exist for an unrestricted user.
		if _, err := s.transition(ctx, userID, state.StateAwaitingApproval, func(us *state.UserState) {
			us.Draft = nil
			us.TopUpID = topUp.ID
		}); err != nil {
			return err
		}

		updated, err := s.accounts.AppendTopUp(ctx, userID, topUp)
		if err != nil {
			if resetErr := s.sessions.Reset(ctx, userID); resetErr != nil {
				s.log.Error("failed to lift restriction after top-up was not recorded",
					slog.String("user_id", userID),
					slog.String("topup_id", topUp.ID),
					slog.Any("error", resetErr),
				)
			}
			return err
		}

		res = &TopUpResult{UserID: userID, User: profileOf(acc), TopUp: topUp, Balance: updated.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("top-up submitted",
		slog.String("topup_id", res.TopUp.ID),
		slog.String("user_id", userID),
		slog.Int64("amount", res.TopUp.Amount),
		slog.String("channel", res.TopUp.Channel),
	)

	topUp := res.TopUp
	s.publish(ctx, notify.Event{
		Type:       notify.EventTopUpSubmitted,
		Recipients: []notify.Recipient{notify.ToAdmins(""), notify.ToOps()},
		User:       res.User,
		TopUp:      &topUp,
		ImageRef:   imageRef,
		Balance:    res.Balance,
	})

	return res, nil
}

func (s *Service) ApproveTopUp(ctx context.Context, topUpID string, admin domain.Actor) (res *TopUpResult, err error) {
	defer func() { observe("approve_topup", err) }()
	return s.resolveTopUp(ctx, topUpID, admin, domain.TopUpApproved)
}

func (s *Service) RejectTopUp(ctx context.Context, topUpID string, admin domain.Actor) (res *TopUpResult, err error) {
	defer func() { observe("reject_topup", err) }()
	return s.resolveTopUp(ctx, topUpID, admin, domain.TopUpRejected)
}

func (s *Service) resolveTopUp(ctx context.Context, topUpID string, admin domain.Actor, status domain.TopUpStatus) (*TopUpResult, error) {
	if err := s.access.RequireAdmin(ctx, admin.ID); err != nil {
		return nil, err
	}

	userID, _, err := s.accounts.FindTopUp(ctx, topUpID)
	if err != nil {
		return nil, err
	}

	var res *TopUpResult
	err = s.withAccount(ctx, userID, func() error {
		updated, err := s.accounts.Update(ctx, userID, func(acc *domain.Account) error {
			_, topUp := acc.TopUp(topUpID)
			if topUp == nil {
				return apperrors.NewNotFoundError("topup", topUpID)
			}
			if topUp.IsTerminal() {
				return apperrors.NewAlreadyProcessedError("topup", topUpID)
			}

			now := s.now()
			topUp.Status = status
			topUp.ResolvedBy = admin.ID
			topUp.ResolvedByName = admin.Name
			topUp.ResolvedAt = &now

			if status == domain.TopUpApproved {
				acc.Balance += topUp.Amount
			}
			return nil
		})
		if err != nil {
			return err
		}

		st, err := s.session(ctx, userID)
		if err == nil && st.Restricted() {
			if err := s.sessions.Reset(ctx, userID); err != nil {
				s.log.Error("failed to lift restriction", slog.String("user_id", userID), slog.Any("error", err))
			}
		}

		_, topUp := updated.TopUp(topUpID)
		res = &TopUpResult{UserID: userID, User: profileOf(updated), TopUp: *topUp, Balance: updated.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := notify.EventTopUpRejected
	if status == domain.TopUpApproved {
		eventType = notify.EventTopUpApproved
		metrics.RecordCredit(res.TopUp.Amount)
	}

	s.log.Info("top-up resolved",
		slog.String("topup_id", topUpID),
		slog.String("status", string(status)),
		slog.String("admin_id", admin.ID),
	)

	topUp := res.TopUp
	s.publish(ctx, notify.Event{
		Type: eventType,
		Recipients: []notify.Recipient{
			notify.ToUser(userID),
			notify.ToChat(topUp.ChatID),
			notify.ToAdmins(admin.ID),
		},
		User:    res.User,
		Actor:   admin,
		TopUp:   &topUp,
		Balance: res.Balance,
	})

	return res, nil
}

// CancelDraft discards the user's draft and reports whether one existed.
// Submitted top-ups are not affected.
func (s *Service) CancelDraft(ctx context.Context, userID string) (cancelled bool, err error) {
	defer func() { observe("cancel_draft", err) }()

	err = s.withAccount(ctx, userID, func() error {
		st, err := s.session(ctx, userID)
		if err != nil {
			return err
		}
		if st.Restricted() {
			return apperrors.NewAwaitingApprovalError()
		}
		if !st.HasDraft() {
			return nil
		}

		if _, err := s.transition(ctx, userID, state.StateIdle, nil); err != nil {
			return err
		}
		cancelled = true
		return nil
	})

	return cancelled, err
}
