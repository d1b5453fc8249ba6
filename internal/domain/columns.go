package domain

// EPICEA dossier labels as printed on a dossier page.
const (
	EpiceaDossier     = "Numéro du dossier"
	EpiceaCTN         = "Comité technique national"
	EpiceaEnterprise  = "Code entreprise"
	EpiceaEquipment   = "Matériel en cause"
	EpiceaDescription = "Résumé de l'accident"
)

// ARIA export column headers. "Départment" is spelled as in the export.
const (
	AriaNumber       = "Numéro ARIA"
	AriaTitle        = "Titre"
	AriaDate         = "Date"
	AriaDepartment   = "Départment"
	AriaCommune      = "Commune"
	AriaCountry      = "Pays"
	AriaNAFCode      = "Code NAF"
	AriaSeverity     = "Echelle"
	AriaRootCauses   = "Causes profondes"
	AriaFirstCauses  = "Causes premières"
	AriaContent      = "Contenu"
	AriaMaterials    = "Matières"
	AriaCLPClass     = "Classe de danger CLP"
	AriaConsequences = "Conséquences"
	AriaEventType    = "Type évènement"
)
