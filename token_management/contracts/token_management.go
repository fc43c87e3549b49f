package contracts

type ITokenManagement interface {
	UsedTokens(inputToken int, outputToken int)
	CalculateCost(modelName string, inputToken int, outputToken int) float64
	ContextUsage(modelName string, inputToken int) (float64, error)
	DisplayTokens(modelName string) string
	GetCurrentTokenUsage() (total int, input int, output int)
	ClearToken()
}
