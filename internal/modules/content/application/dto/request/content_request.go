package request

type SubmitArticleRequest struct {
	Title   string `json:"title" binding:"required"`
	Summary string `json:"summary"`
	Content string `json:"content" binding:"required"`
}

type SubmitProjectRequest struct {
	Name          string `json:"name" binding:"required"`
	Description   string `json:"description"`
	RepositoryUrl string `json:"repositoryUrl"`
}

// SubmitCommentRequest TargetType 为 ARTICLE 或 PROJECT，ParentId 非空时为回复
type SubmitCommentRequest struct {
	TargetType string `json:"targetType" binding:"required"`
	TargetId   string `json:"targetId" binding:"required"`
	ParentId   string `json:"parentId"`
	Content    string `json:"content" binding:"required"`
}

type EditCommentRequest struct {
	Content string `json:"content" binding:"required"`
}
