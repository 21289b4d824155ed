// Package provision はログイン済みIdentityに対応するプロフィールレコードを冪等に作成する。
package provision

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/agenda/internal/metrics"
	"github.com/hitoshi/agenda/internal/model"
	"github.com/hitoshi/agenda/internal/repository"
)

// DefaultFallbackName は表示名が得られない場合に使う名前。
const DefaultFallbackName = "ユーザー"

// Provisioner はプロフィールレコードの作成を担う。
// 作成は条件付きで行うため、同じIdentityに対して並行に呼ばれても最初の書き込みだけが残る。
type Provisioner struct {
	profiles     repository.ProfileRepository
	fallbackName string
	metrics      metrics.MetricsCollector
	now          func() time.Time

	mu    sync.Mutex
	hints map[string]model.ProfileExtra
}

// NewProvisioner はProvisionerを生成する。metricsはnilでもよい。
func NewProvisioner(profiles repository.ProfileRepository, fallbackName string, m metrics.MetricsCollector) *Provisioner {
	if fallbackName == "" {
		fallbackName = DefaultFallbackName
	}
	return &Provisioner{
		profiles:     profiles,
		fallbackName: fallbackName,
		metrics:      m,
		now:          time.Now,
		hints:        make(map[string]model.ProfileExtra),
	}
}

// Expect はアカウント作成前に、そのメールアドレスで作られるプロフィールの追加情報を登録する。
// アカウント作成直後の購読経由の作成でも指定した表示名が使われる。
func (p *Provisioner) Expect(email string, extra model.ProfileExtra) {
	key := hintKey(email)
	if key == "" {
		return
	}
	p.mu.Lock()
	p.hints[key] = extra
	p.mu.Unlock()
}

// Forget はExpectで登録した追加情報を破棄する。
func (p *Provisioner) Forget(email string) {
	p.mu.Lock()
	delete(p.hints, hintKey(email))
	p.mu.Unlock()
}

// EnsureProfile はプロフィールが存在しなければ作成する。既存レコードは変更しない。
// 失敗はログに記録し、呼び出し元には返さない。
func (p *Provisioner) EnsureProfile(ctx context.Context, identity *model.Identity, extra model.ProfileExtra) {
	if identity == nil || identity.UID == "" {
		return
	}

	existing, err := p.profiles.FindByID(ctx, identity.UID)
	if err != nil {
		p.fail(identity.UID, err)
		return
	}
	if existing != nil {
		p.record("exists")
		return
	}

	profile := &model.Profile{
		UID:         identity.UID,
		Email:       identity.Email,
		DisplayName: p.displayName(identity, extra),
		PhotoURL:    identity.PhotoURL,
		CreatedAt:   p.now(),
	}

	created, err := p.profiles.Create(ctx, profile)
	if err != nil {
		p.fail(identity.UID, err)
		return
	}
	if !created {
		// 並行した作成が先に完了した
		p.record("exists")
		return
	}

	p.record("created")
	slog.Info("profile created",
		slog.String("uid", profile.UID),
		slog.String("display_name", profile.DisplayName),
	)
}

// displayName は 追加情報 > 登録済みヒント > Identityの表示名 > 既定名 の順で決める。
func (p *Provisioner) displayName(identity *model.Identity, extra model.ProfileExtra) string {
	if name := strings.TrimSpace(extra.DisplayName); name != "" {
		return name
	}

	p.mu.Lock()
	hint, ok := p.hints[hintKey(identity.Email)]
	p.mu.Unlock()
	if name := strings.TrimSpace(hint.DisplayName); ok && name != "" {
		return name
	}

	if name := strings.TrimSpace(identity.DisplayName); name != "" {
		return name
	}
	return p.fallbackName
}

func (p *Provisioner) fail(uid string, err error) {
	p.record("failed")
	apiErr := model.NewProvisioningFailedError(uid)
	slog.Error("profile provisioning failed",
		slog.String("code", apiErr.Code),
		slog.String("uid", uid),
		slog.String("error", err.Error()),
	)
}

func (p *Provisioner) record(result string) {
	if p.metrics != nil {
		p.metrics.RecordProvisioning(result)
	}
}

func hintKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
