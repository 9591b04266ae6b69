package parser

import (
	"testing"

	"sftgen/internal/models"
	"sftgen/internal/util"

	"github.com/stretchr/testify/require"
)

func TestQuestionParserExtractsInOrder(t *testing.T) {
	got, err := QuestionParser{}.Parse(`"Question 1": "What is X?" "Question 2": "What is Y?"`)
	require.NoError(t, err)
	require.Equal(t, []string{"What is X?", "What is Y?"}, got)
}

func TestQuestionParserToleratesNoise(t *testing.T) {
	raw := "<think>the user wants JSON</think>\n```json\n{\n  \"Question 1\":   \"How do agents share memory?\",\n  \"Question 12\":\"What is a crew?\"\n}\n```"
	got, err := QuestionParser{}.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"How do agents share memory?", "What is a crew?"}, got)
}

func TestQuestionParserNoMatchIsEmptyNotError(t *testing.T) {
	for _, raw := range []string{"", "no questions here", `"Q1": "What?"`, `"Question one": "What?"`} {
		got, err := QuestionParser{}.Parse(raw)
		require.NoError(t, err, raw)
		require.Empty(t, got, raw)
	}
}

func TestAnswerParserExtractsTrimmedText(t *testing.T) {
	got, err := AnswerParser{}.Parse("<think>reasoning</think>\n<answer>\n  Agents are autonomous units.\n  They collaborate.  \n</endanswer> trailing")
	require.NoError(t, err)
	require.Equal(t, []string{"Agents are autonomous units.\n  They collaborate."}, got)
}

func TestAnswerParserMissingTags(t *testing.T) {
	cases := []string{
		"",
		"plain text answer",
		"<answer>unterminated",
		"<answer>wrong closer</answer>",
		"</endanswer>reversed<answer>",
	}
	for _, raw := range cases {
		_, err := AnswerParser{}.Parse(raw)
		require.ErrorIs(t, err, util.ErrMissingAnswerTag, raw)
	}
}

func TestAnswerTagPairIsPinned(t *testing.T) {
	require.Equal(t, "<answer>", AnswerOpenTag)
	require.Equal(t, "</endanswer>", AnswerCloseTag)
}

func TestForStage(t *testing.T) {
	p, err := ForStage(models.StageQuestions)
	require.NoError(t, err)
	require.Equal(t, models.StageQuestions, p.Stage())

	p, err = ForStage(models.StageAnswers)
	require.NoError(t, err)
	require.Equal(t, models.StageAnswers, p.Stage())

	_, err = ForStage("bogus")
	require.Error(t, err)
}
