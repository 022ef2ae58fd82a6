package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"

	"billing-reconciler/internal/domain/model"
)

//go:embed locales
var LocalesFS embed.FS

const dateLayout = "2 Jan 2006"

// Translator renders notification text from a YAML message catalog.
type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", langCode+".yaml")
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = langCode
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T returns the message for key formatted with args, or key itself when missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Render produces the user-facing text for a notification.
func (t *Translator) Render(n model.NotificationRequest) string {
	svc := n.ServiceID
	end := n.EndAt.UTC().Format(dateLayout)
	switch n.Kind {
	case model.NotificationExpiryWarning:
		return t.T("notification.expiry_warning", svc, n.ThresholdDays, end)
	case model.NotificationExpired:
		if n.GraceEndAt != nil {
			return t.T("notification.expired_grace", svc, end, n.GraceEndAt.UTC().Format(dateLayout))
		}
		return t.T("notification.expired", svc, end)
	case model.NotificationGraceExpired:
		return t.T("notification.grace_expired", svc)
	}
	return t.T("notification." + string(n.Kind))
}
