package extraction

import "strings"

// Task identifies one field extracted from an accident description.
type Task int

const (
	TaskTitle Task = iota
	TaskFatalities
	TaskInjuries
	TaskEvacuated
	TaskHospitalized
	TaskSubstances
)

const contextPlaceholder = "$context"

type taskSpec struct {
	id       string
	shape    Shape
	template string
}

var taskSpecs = [...]taskSpec{
	TaskTitle: {
		id:    "title",
		shape: ShapeText,
		template: `Génère un titre concis (moins de 10 mots) qui résume l'essentiel de cette description d'accident industriel :
$context

Exemple :
"Fuite propane avec périmètre sécurité 300m"

Réponds UNIQUEMENT avec le titre, sans guillemets ni explication.`,
	},
	TaskFatalities: {
		id:    "fatalities",
		shape: ShapeInteger,
		template: `Extrait le nombre EXACT de morts (décès, fatalities) dans cette description d'accident :
$context

- Si mentionné explicitement (ex. "0 morts", "2 fatalities"), réponds ce nombre.
- Si absent ou non chiffré (ex. "victimes", "décès possibles"), réponds 0.
- Exemple: "2 morts" → 2

Réponds UNIQUEMENT avec un seul nombre entier, rien d'autre.`,
	},
	TaskInjuries: {
		id:    "injuries",
		shape: ShapeInteger,
		template: `Extrait le nombre EXACT de blessés (injuries, blessés légers/graves) dans cette description :
$context

- Si mentionné (ex. "3 injuries", "2 blessés légers"), réponds ce nombre.
- Si absent ou vague (ex. "blessés non précisés"), réponds 0.
- Exemple: "Pas de blessés" → 0

Réponds UNIQUEMENT avec un seul nombre entier.`,
	},
	TaskEvacuated: {
		id:    "evacuated",
		shape: ShapeInteger,
		template: `Extrait le nombre EXACT de personnes évacuées (évacuation, confinement, périmètre sécurité avec évacuation) dans cette description :
$context

- Si absent ou seulement "périmètre" sans nombre, réponds 0.
- Exemple: "Area evacuated within 500m radius" → 0 (pas de nombre précis)
- Exemple: "Confinement riverains 2h, 100 évacués" → 100

Réponds UNIQUEMENT avec un seul nombre entier (0 si inconnu).`,
	},
	TaskHospitalized: {
		id:    "hospitalized",
		shape: ShapeInteger,
		template: `Extrait le nombre EXACT de personnes hospitalisées (hospitalisées, admises hôpital) dans cette description :
$context

- Si mentionné (ex. "5 hospitalisés"), réponds ce nombre.
- Si absent, blessures mentionnées sans hôpital, ou vague, réponds 0.
- Exemple: "3 envoyés à l'hôpital" → 3

Réponds UNIQUEMENT avec un seul nombre entier.`,
	},
	TaskSubstances: {
		id:    "substances",
		shape: ShapeSubstances,
		template: `Extrait les substances chimiques/nuisibles mentionnées explicitement dans cette description, avec quantité SI précisée :
$context

- Noms exacts du texte (ex. propane, H2S, ammoniac).
- Quantité seulement si chiffrée (ex. "2000L fioul"); laisse vide sinon.
- Numéro CAS et classe CLP seulement s'ils sont connus; laisse vide sinon.
- S'il n'y a aucune substance, réponds une liste vide.`,
	},
}

// Tasks lists every registered task in declaration order.
func Tasks() []Task {
	out := make([]Task, len(taskSpecs))
	for i := range taskSpecs {
		out[i] = Task(i)
	}
	return out
}

// ParseTask resolves a task identifier such as "fatalities".
func ParseTask(id string) (Task, bool) {
	id = strings.TrimSpace(id)
	for i, spec := range taskSpecs {
		if spec.id == id {
			return Task(i), true
		}
	}
	return 0, false
}

// Valid reports whether t is a registered task.
func (t Task) Valid() bool {
	return t >= 0 && int(t) < len(taskSpecs)
}

// ID returns the task identifier.
func (t Task) ID() string {
	if !t.Valid() {
		return "unknown"
	}
	return taskSpecs[t].id
}

func (t Task) String() string {
	return t.ID()
}

// Shape returns the output shape declared by the task.
func (t Task) Shape() Shape {
	return taskSpecs[t].shape
}

// Render substitutes the context text into the task prompt.
func (t Task) Render(contextText string) string {
	return strings.Replace(taskSpecs[t].template, contextPlaceholder, contextText, 1)
}
