// Package shortcode deriva os nomes usados contra a API de templates da Meta.
//
// Um short code físico carrega um sufixo de timestamp porque a Meta não
// permite reutilizar o nome de um template deletado/rejeitado por um período
// de quarentena. A forma normalizada (minúscula, apenas [a-z0-9_]) precisa
// ser idêntica em todos os pontos que derivam nome a partir de short code:
// criação, deleção e o casamento de eventos de webhook.
package shortcode

import (
	"fmt"
	"strings"
	"time"
)

// Sanitize remove tudo fora de [A-Za-z0-9_-] do código informado pelo usuário.
func Sanitize(base string) string {
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// WithTimestamp gera o short code físico a partir do código base:
// "<base-sanitizado>-<unix>". Chamado na criação e a cada renomeação.
func WithTimestamp(base string, now time.Time) string {
	return fmt.Sprintf("%s-%d", Sanitize(base), now.Unix())
}

// Normalize produz o nome de template aceito pela Meta: minúsculas e apenas
// [a-z0-9_]. Separadores usados localmente ("/", "-", espaço) viram "_"
// antes da limpeza, para que "Hello World-171234" case com "hello_world_171234".
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '/' || r == '-' || r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}
