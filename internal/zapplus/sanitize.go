package zapplus

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"zapfleet/pkg/models"
)

// GroupInfo são os metadados sanitizados de um grupo.
// É o único formato que atravessa a fronteira do gateway: payloads crus da
// API nunca chegam à camada de persistência.
type GroupInfo struct {
	JID          string
	Subject      string
	Description  string
	Participants models.GroupParticipantList
	AdminIDs     models.StringList
}

// decodeRaw lê o corpo completo para permitir múltiplas tentativas de decode
func decodeRaw(r io.Reader) (json.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return json.RawMessage(data), nil
}

// SanitizeGroupInfo converte o payload cru da API em GroupInfo.
// Campos não-primitivos inesperados são descartados e participantes
// malformados são ignorados em vez de corromper o registro persistido.
func SanitizeGroupInfo(groupID string, raw map[string]interface{}) (*GroupInfo, error) {
	if raw == nil {
		return nil, fmt.Errorf("empty payload")
	}

	info := &GroupInfo{
		JID:          groupID,
		Participants: models.GroupParticipantList{},
		AdminIDs:     models.StringList{},
	}

	if jid := stringField(raw, "id"); jid != "" {
		info.JID = jid
	}
	info.Subject = firstStringField(raw, "subject", "name", "title")
	info.Description = firstStringField(raw, "description", "desc")

	rawParticipants, ok := raw["participants"].([]interface{})
	if !ok {
		// Algumas engines aninham os participantes em groupMetadata
		if meta, ok := raw["groupMetadata"].(map[string]interface{}); ok {
			rawParticipants, _ = meta["participants"].([]interface{})
			if info.Subject == "" {
				info.Subject = firstStringField(meta, "subject")
			}
			if info.Description == "" {
				info.Description = firstStringField(meta, "desc", "description")
			}
		}
	}

	for _, entry := range rawParticipants {
		participant, ok := sanitizeParticipant(entry)
		if !ok {
			continue
		}
		info.Participants = append(info.Participants, participant)
		if participant.IsAdmin() {
			info.AdminIDs = append(info.AdminIDs, participant.ID)
		}
	}

	if info.JID == "" {
		return nil, fmt.Errorf("payload missing group id")
	}
	return info, nil
}

// sanitizeParticipant valida uma entrada de participante, aceitando os dois
// formatos emitidos pela API (id como string ou como objeto serializado)
func sanitizeParticipant(entry interface{}) (models.GroupParticipant, bool) {
	fields, ok := entry.(map[string]interface{})
	if !ok {
		return models.GroupParticipant{}, false
	}

	var id string
	switch v := fields["id"].(type) {
	case string:
		id = v
	case map[string]interface{}:
		id = stringField(v, "_serialized")
		if id == "" {
			user := stringField(v, "user")
			server := stringField(v, "server")
			if user != "" && server != "" {
				id = user + "@" + server
			}
		}
	}
	if id == "" {
		return models.GroupParticipant{}, false
	}

	role := models.RoleMember
	if r := stringField(fields, "role"); r != "" {
		switch strings.ToLower(r) {
		case "admin":
			role = models.RoleAdmin
		case "superadmin":
			role = models.RoleSuperAdmin
		}
	} else {
		if isSuper, _ := fields["isSuperAdmin"].(bool); isSuper {
			role = models.RoleSuperAdmin
		} else if isAdmin, _ := fields["isAdmin"].(bool); isAdmin {
			role = models.RoleAdmin
		}
	}

	return models.GroupParticipant{ID: id, Role: role}, true
}

func stringField(fields map[string]interface{}, key string) string {
	value, _ := fields[key].(string)
	return value
}

func firstStringField(fields map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value := stringField(fields, key); value != "" {
			return value
		}
	}
	return ""
}

// FormatPhoneToWhatsApp formata um número de telefone para o formato WhatsApp
func FormatPhoneToWhatsApp(phone string) string {
	if strings.Contains(phone, "@") {
		return phone // already a chat id
	}
	return fmt.Sprintf("%s@c.us", NormalizePhone(phone))
}

// NormalizePhone remove sufixos de chat id e caracteres não numéricos.
// A API formata ids de forma inconsistente entre engines, então comparações
// de identidade devem sempre passar por aqui.
func NormalizePhone(id string) string {
	if at := strings.Index(id, "@"); at >= 0 {
		id = id[:at]
	}
	if colon := strings.Index(id, ":"); colon >= 0 {
		id = id[:colon]
	}
	var cleaned strings.Builder
	for _, char := range id {
		if char >= '0' && char <= '9' {
			cleaned.WriteRune(char)
		}
	}
	return cleaned.String()
}

// SamePhone compara dois ids/números após normalização
func SamePhone(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	return na != "" && na == nb
}
