package zapplus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Client representa o cliente para interagir com a API do ZapPlus
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// SessionResponse representa a resposta da API de sessão
type SessionResponse struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Me     struct {
		ID       string `json:"id"`
		PushName string `json:"pushName"`
	} `json:"me"`
	Engine struct {
		Engine string `json:"engine"`
		State  string `json:"state"`
	} `json:"engine"`
}

// GroupSummary é um item da listagem de grupos de uma sessão
type GroupSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GroupListResponse representa a resposta da API de grupos
type GroupListResponse struct {
	Success bool           `json:"success"`
	Data    []GroupSummary `json:"data"`
}

// GroupID representa o ID de um grupo
type GroupID struct {
	Server     string `json:"server"`
	User       string `json:"user"`
	Serialized string `json:"_serialized"`
}

// CreateGroupResponse representa a resposta da criação de grupo
type CreateGroupResponse struct {
	Title string  `json:"title"`
	GID   GroupID `json:"gid"`
}

// InviteCodeResponse representa a resposta da API de código de convite
type InviteCodeResponse struct {
	Code string `json:"code"`
}

// Singleton instance
var instance *Client

// GetClient retorna a instância singleton do cliente ZapPlus
func GetClient() *Client {
	if instance == nil {
		baseURL := os.Getenv("ZAPPLUS_BASE_URL")
		if baseURL == "" {
			baseURL = "http://zap-plus.heltec.com.br:3000" // fallback
		}
		instance = NewClient(baseURL)
	}
	return instance
}

// NewClient cria uma nova instância do cliente ZapPlus (para testes)
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doJSON executa uma requisição e decodifica a resposta JSON em out (quando não-nil)
func (c *Client) doJSON(method, requestURL string, body, out interface{}) error {
	var reader *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, requestURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts e falhas de rede entram na mesma categoria de indisponibilidade
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 && resp.StatusCode != 201 && resp.StatusCode != 204 {
		return classifyStatus(resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// GetSessionStatus obtém o status de uma sessão
func (c *Client) GetSessionStatus(session string) (*SessionResponse, error) {
	var response SessionResponse
	requestURL := fmt.Sprintf("%s/api/sessions/%s", c.baseURL, session)
	if err := c.doJSON("GET", requestURL, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to get session status: %w", err)
	}
	return &response, nil
}

// IsValidSession verifica se uma sessão está válida e conectada
func (c *Client) IsValidSession(session string) bool {
	status, err := c.GetSessionStatus(session)
	if err != nil {
		return false
	}
	// Status WORKING significa que a sessão está conectada e funcionando
	return status.Status == "WORKING" && status.Engine.State == "CONNECTED"
}

// ListGroups lista todos os grupos dos quais a sessão participa
func (c *Client) ListGroups(session string) ([]GroupSummary, error) {
	requestURL := fmt.Sprintf("%s/api/%s/groups", c.baseURL, session)

	resp, err := c.httpClient.Get(requestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, classifyStatus(resp.StatusCode)
	}

	// A API retorna {success, data} ou diretamente um array dependendo da engine
	raw, err := decodeRaw(resp.Body)
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		var plain []GroupSummary
		if err := json.Unmarshal(raw, &plain); err != nil {
			return nil, fmt.Errorf("failed to decode group list: %w", err)
		}
		return plain, nil
	}
	var envelope GroupListResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode group list: %w", err)
	}
	return envelope.Data, nil
}

// FetchGroupInfo obtém e sanitiza os metadados de um grupo específico
func (c *Client) FetchGroupInfo(session, groupID string) (*GroupInfo, error) {
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s", c.baseURL, session, url.QueryEscape(groupID))

	resp, err := c.httpClient.Get(requestURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, classifyStatus(resp.StatusCode)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode group info: %w", err)
	}

	info, err := SanitizeGroupInfo(groupID, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid group info payload: %w", err)
	}
	return info, nil
}

// CreateGroup cria um novo grupo WhatsApp e retorna o JID serializado
func (c *Client) CreateGroup(session, name string, participants []string) (string, error) {
	type groupParticipant struct {
		ID string `json:"id"`
	}
	request := struct {
		Name         string             `json:"name"`
		Participants []groupParticipant `json:"participants"`
	}{Name: name}
	for _, phone := range participants {
		request.Participants = append(request.Participants, groupParticipant{ID: FormatPhoneToWhatsApp(phone)})
	}

	var response CreateGroupResponse
	requestURL := fmt.Sprintf("%s/api/%s/groups", c.baseURL, session)
	if err := c.doJSON("POST", requestURL, request, &response); err != nil {
		return "", fmt.Errorf("failed to create group: %w", err)
	}

	jid := response.GID.Serialized
	if jid == "" && response.GID.User != "" {
		jid = fmt.Sprintf("%s@%s", response.GID.User, response.GID.Server)
	}
	if jid == "" {
		return "", fmt.Errorf("create group response missing group id")
	}
	return jid, nil
}

// participantsPayload monta o corpo padrão das operações de participantes
func participantsPayload(phones []string) interface{} {
	type participant struct {
		ID string `json:"id"`
	}
	request := struct {
		Participants []participant `json:"participants"`
	}{}
	for _, phone := range phones {
		request.Participants = append(request.Participants, participant{ID: FormatPhoneToWhatsApp(phone)})
	}
	return request
}

// AddParticipants adiciona participantes a um grupo
func (c *Client) AddParticipants(session, groupID string, phones []string) error {
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/participants/add", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("POST", requestURL, participantsPayload(phones), nil)
}

// RemoveParticipants remove participantes de um grupo
func (c *Client) RemoveParticipants(session, groupID string, phones []string) error {
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/participants/remove", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("POST", requestURL, participantsPayload(phones), nil)
}

// PromoteParticipants promove participantes a administradores
func (c *Client) PromoteParticipants(session, groupID string, phones []string) error {
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/admin/promote", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("POST", requestURL, participantsPayload(phones), nil)
}

// DemoteParticipants rebaixa administradores a participantes comuns
func (c *Client) DemoteParticipants(session, groupID string, phones []string) error {
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/admin/demote", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("POST", requestURL, participantsPayload(phones), nil)
}

// GetInviteCode obtém o código de convite do grupo (requer admin)
func (c *Client) GetInviteCode(session, groupID string) (string, error) {
	var response InviteCodeResponse
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/invite-code", c.baseURL, session, url.QueryEscape(groupID))
	if err := c.doJSON("GET", requestURL, nil, &response); err != nil {
		return "", fmt.Errorf("failed to get invite code: %w", err)
	}
	return strings.TrimPrefix(response.Code, "https://chat.whatsapp.com/"), nil
}

// RevokeInviteCode revoga o código atual e retorna o novo (requer admin)
func (c *Client) RevokeInviteCode(session, groupID string) (string, error) {
	var response InviteCodeResponse
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/invite-code/revoke", c.baseURL, session, url.QueryEscape(groupID))
	if err := c.doJSON("POST", requestURL, nil, &response); err != nil {
		return "", fmt.Errorf("failed to revoke invite code: %w", err)
	}
	return strings.TrimPrefix(response.Code, "https://chat.whatsapp.com/"), nil
}

// JoinGroup entra em um grupo usando um código ou link de convite e retorna
// o JID do grupo
func (c *Client) JoinGroup(session, code string) (string, error) {
	request := struct {
		Code string `json:"code"`
	}{Code: strings.TrimPrefix(code, "https://chat.whatsapp.com/")}

	var response struct {
		ID string `json:"id"`
	}
	requestURL := fmt.Sprintf("%s/api/%s/groups/join", c.baseURL, session)
	if err := c.doJSON("POST", requestURL, request, &response); err != nil {
		return "", fmt.Errorf("failed to join group: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("join group response missing group id")
	}
	return response.ID, nil
}

// SetGroupSubject renomeia um grupo (requer admin)
func (c *Client) SetGroupSubject(session, groupID, subject string) error {
	request := struct {
		Subject string `json:"subject"`
	}{Subject: subject}
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/subject", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("PUT", requestURL, request, nil)
}

// SetGroupDescription altera a descrição de um grupo (requer admin)
func (c *Client) SetGroupDescription(session, groupID, description string) error {
	request := struct {
		Description string `json:"description"`
	}{Description: description}
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/description", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("PUT", requestURL, request, nil)
}

// SetGroupPicture altera a foto de um grupo (requer admin)
func (c *Client) SetGroupPicture(session, groupID, pictureURL string) error {
	request := struct {
		File struct {
			URL string `json:"url"`
		} `json:"file"`
	}{}
	request.File.URL = pictureURL
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/picture", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("PUT", requestURL, request, nil)
}

// SendGroupMessage envia uma mensagem de texto para um grupo
func (c *Client) SendGroupMessage(session, groupID, text string) error {
	request := struct {
		ChatID  string `json:"chatId"`
		Text    string `json:"text"`
		Session string `json:"session"`
	}{ChatID: groupID, Text: text, Session: session}

	requestURL := fmt.Sprintf("%s/api/sendText", c.baseURL)
	time.Sleep(1 * time.Second) // evitar rate limit
	return c.doJSON("POST", requestURL, request, nil)
}

// LeaveGroup sai de um grupo (o registro local é removido pela sincronização)
func (c *Client) LeaveGroup(session, groupID string) error {
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s/leave", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("POST", requestURL, nil, nil)
}

// DeleteGroup deleta um grupo WhatsApp
func (c *Client) DeleteGroup(session, groupID string) error {
	requestURL := fmt.Sprintf("%s/api/%s/groups/%s", c.baseURL, session, url.QueryEscape(groupID))
	return c.doJSON("DELETE", requestURL, nil, nil)
}
