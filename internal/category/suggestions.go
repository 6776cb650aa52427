package category

// suggestions are the support actions shown to school staff alongside a
// prediction, one list per category.
var suggestions = [Count][]string{
	Reading: {
		"Praticar leitura diária de textos curtos",
		"Usar marcadores de texto para identificar ideias principais",
		"Participar de grupos de estudo de interpretação",
	},
	Math: {
		"Revisar conceitos básicos que são pré-requisitos",
		"Fazer exercícios gradativamente mais complexos",
		"Usar aplicativos de aprendizagem matemática",
	},
	Anxiety: {
		"Praticar técnicas de respiração antes de provas",
		"Dividir tarefas grandes em partes menores",
		"Buscar apoio psicológico se necessário",
	},
	Concentration: {
		"Estudar em ambientes silenciosos e organizados",
		"Usar técnicas Pomodoro (25min estudo + 5min descanso)",
		"Evitar multitarefas durante o estudo",
	},
	Organization: {
		"Usar agendas ou aplicativos de planejamento",
		"Criar listas de tarefas diárias",
		"Estabelecer rotinas de estudo fixas",
	},
	Deadlines: {
		"Dividir trabalhos grandes em etapas com prazos intermediários",
		"Começar tarefas imediatamente após serem passadas",
		"Usar lembretes para entregas importantes",
	},
}

// Suggestions returns the support suggestions for c, or nil for an
// unknown category.
func (c Category) Suggestions() []string {
	if !c.Valid() {
		return nil
	}
	out := make([]string, len(suggestions[c]))
	copy(out, suggestions[c])
	return out
}
