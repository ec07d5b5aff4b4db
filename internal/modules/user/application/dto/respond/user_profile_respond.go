package respond

type UserProfileRespond struct {
	Uuid        string   `json:"uuid"`
	Username    string   `json:"username"`
	Nickname    string   `json:"nickname"`
	DisplayName string   `json:"display_name"`
	Avatar      string   `json:"avatar"`
	Roles       []string `json:"roles"`
	Status      int8     `json:"status"`
	Online      bool     `json:"online"`
}
