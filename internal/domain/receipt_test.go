package domain

import "testing"

func TestSearchToolResultValidate(t *testing.T) {
	emptyNote := ""
	nonEmptyNote := "a relevant excerpt"

	tests := []struct {
		name    string
		result  SearchToolResult
		wantErr bool
	}{
		{
			name:   "valid with no note",
			result: SearchToolResult{URL: "https://example.com/a"},
		},
		{
			name:   "valid with note",
			result: SearchToolResult{URL: "https://example.com/a", Note: &nonEmptyNote},
		},
		{
			name:    "missing url",
			result:  SearchToolResult{},
			wantErr: true,
		},
		{
			name:    "empty note rejected",
			result:  SearchToolResult{URL: "https://example.com/a", Note: &emptyNote},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsCitationSource(t *testing.T) {
	tests := []struct {
		tool string
		want bool
	}{
		{"search_web", true},
		{"search_x", true},
		{"search_ai", true},
		{"search_items", true},
		{"search_repo", true},
		{"get_repo_file", true},
		{"llm_chat", false},
		{"test_tool", false},
		{"tooling_info", false},
		{"not_a_tool", false},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			if got := IsCitationSource(tt.tool); got != tt.want {
				t.Errorf("IsCitationSource(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

func TestIsLLMTool(t *testing.T) {
	if !IsLLMTool("llm_chat") {
		t.Error("expected llm_chat to be an LLM tool")
	}
	if IsLLMTool("search_web") {
		t.Error("expected search_web not to be an LLM tool")
	}
}

func TestValidateToolName(t *testing.T) {
	for tool := range ToolNames {
		if err := ValidateToolName(tool); err != nil {
			t.Errorf("ValidateToolName(%q) = %v, want nil", tool, err)
		}
	}
	if err := ValidateToolName("bogus_tool"); err != ErrUnknownTool {
		t.Errorf("ValidateToolName(bogus) = %v, want ErrUnknownTool", err)
	}
}
