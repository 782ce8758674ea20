package areas

import "github.com/kjstillabower/flood-risk-service/internal/models"

// Recife returns the built-in table of monitored flood-risk areas in Recife,
// compiled from Defesa Civil records for 2020-2024.
func Recife() []models.Area {
	return []models.Area{
		{
			ID:     "1",
			Name:   "Zona Sul - Imbiribeira/Ipsep",
			Region: "Zona Sul",
			Polygon: []models.LatLng{
				{Lat: -8.1190, Lng: -34.9070}, {Lat: -8.1175, Lng: -34.9040}, {Lat: -8.1160, Lng: -34.9010},
				{Lat: -8.1145, Lng: -34.8980}, {Lat: -8.1130, Lng: -34.8950}, {Lat: -8.1100, Lng: -34.8970},
				{Lat: -8.1080, Lng: -34.8990}, {Lat: -8.1105, Lng: -34.9020}, {Lat: -8.1130, Lng: -34.9050},
				{Lat: -8.1155, Lng: -34.9080}, {Lat: -8.1180, Lng: -34.9110}, {Lat: -8.1205, Lng: -34.9090},
			},
			Vulnerability:  0.85,
			CriticalPoints: []string{"Av. Mascarenhas de Moraes", "Av. Engenheiro Domingos Ferreira", "Rua da Hora", "Av. Antônio de Góes (Pina)", "Shopping Recife"},
			Neighborhoods:  []string{"Imbiribeira", "Ipsep", "Boa Viagem", "Pina"},
			RiskType:       "sistema_drenagem_sobrecarregado",
			Severity:       "alta",
			FloodHistory:   35,
		},
		{
			ID:     "2",
			Name:   "Centro - Boa Vista/Santo Amaro",
			Region: "Centro",
			Polygon: []models.LatLng{
				{Lat: -8.0615, Lng: -34.8850}, {Lat: -8.0600, Lng: -34.8820}, {Lat: -8.0585, Lng: -34.8790},
				{Lat: -8.0570, Lng: -34.8760}, {Lat: -8.0555, Lng: -34.8730}, {Lat: -8.0530, Lng: -34.8750},
				{Lat: -8.0505, Lng: -34.8770}, {Lat: -8.0520, Lng: -34.8800}, {Lat: -8.0535, Lng: -34.8830},
				{Lat: -8.0550, Lng: -34.8860}, {Lat: -8.0565, Lng: -34.8890}, {Lat: -8.0590, Lng: -34.8870},
			},
			Vulnerability:  0.90,
			CriticalPoints: []string{"Av. Conde da Boa Vista", "Rua Imperial (São José)", "Rua Gonçalves Maia (Boa Vista)", "Rua da Imperatriz", "Túnel Felipe Camarão"},
			Neighborhoods:  []string{"Boa Vista", "Santo Amaro", "Paissandu", "Soledade"},
			RiskType:       "impermeabilizacao_urbana",
			Severity:       "alta",
			FloodHistory:   42,
		},
		{
			ID:     "3",
			Name:   "Zona Norte - Dois Irmãos/Dois Unidos",
			Region: "Zona Norte",
			Polygon: []models.LatLng{
				{Lat: -8.0285, Lng: -34.9043}, {Lat: -8.0270, Lng: -34.9010}, {Lat: -8.0255, Lng: -34.8980},
				{Lat: -8.0240, Lng: -34.8950}, {Lat: -8.0225, Lng: -34.8920}, {Lat: -8.0200, Lng: -34.8940},
				{Lat: -8.0175, Lng: -34.8960}, {Lat: -8.0190, Lng: -34.8990}, {Lat: -8.0205, Lng: -34.9020},
				{Lat: -8.0220, Lng: -34.9050}, {Lat: -8.0235, Lng: -34.9080}, {Lat: -8.0260, Lng: -34.9060},
			},
			Vulnerability:  0.75,
			CriticalPoints: []string{"Av. Dois Irmãos", "Rua da Macaxeira", "Córrego do Jenipapo", "Estrada do Arraial"},
			Neighborhoods:  []string{"Dois Irmãos", "Dois Unidos", "Alto do Mandu", "Macaxeira"},
			RiskType:       "drenagem_insuficiente",
			Severity:       "alta",
			FloodHistory:   28,
		},
		{
			ID:     "4",
			Name:   "Zona Oeste - Várzea/Afogados",
			Region: "Zona Oeste",
			Polygon: []models.LatLng{
				{Lat: -8.0520, Lng: -34.9512}, {Lat: -8.0505, Lng: -34.9480}, {Lat: -8.0490, Lng: -34.9450},
				{Lat: -8.0475, Lng: -34.9420}, {Lat: -8.0460, Lng: -34.9390}, {Lat: -8.0435, Lng: -34.9410},
				{Lat: -8.0410, Lng: -34.9430}, {Lat: -8.0425, Lng: -34.9460}, {Lat: -8.0440, Lng: -34.9490},
				{Lat: -8.0455, Lng: -34.9520}, {Lat: -8.0470, Lng: -34.9550}, {Lat: -8.0495, Lng: -34.9530},
			},
			Vulnerability:  0.70,
			CriticalPoints: []string{"Av. Prof. Moraes Rego", "Estrada dos Remédios (Afogados)", "Rua Castro Alves (Encruzilhada)", "Av. Caxangá"},
			Neighborhoods:  []string{"Várzea", "Afogados", "Encruzilhada", "Madalena"},
			RiskType:       "rio_capibaribe",
			Severity:       "media",
			FloodHistory:   25,
		},
		{
			ID:     "5",
			Name:   "Centro Histórico - Recife Antigo",
			Region: "Centro",
			Polygon: []models.LatLng{
				{Lat: -8.0586, Lng: -34.8713}, {Lat: -8.0571, Lng: -34.8680}, {Lat: -8.0556, Lng: -34.8650},
				{Lat: -8.0541, Lng: -34.8620}, {Lat: -8.0526, Lng: -34.8590}, {Lat: -8.0501, Lng: -34.8610},
				{Lat: -8.0476, Lng: -34.8630}, {Lat: -8.0491, Lng: -34.8660}, {Lat: -8.0506, Lng: -34.8690},
				{Lat: -8.0521, Lng: -34.8720}, {Lat: -8.0536, Lng: -34.8750}, {Lat: -8.0561, Lng: -34.8730},
			},
			Vulnerability:  0.80,
			CriticalPoints: []string{"Av. Marquês de Olinda", "Rua do Apolo", "Av. Alfredo Lisboa", "Marco Zero"},
			Neighborhoods:  []string{"Recife Antigo", "São José", "Santo Antônio"},
			RiskType:       "mare_alta",
			Severity:       "alta",
			FloodHistory:   30,
		},
		{
			ID:     "6",
			Name:   "Zona Sul - Ibura/Jordão",
			Region: "Zona Sul",
			Polygon: []models.LatLng{
				{Lat: -8.0843, Lng: -34.8915}, {Lat: -8.0828, Lng: -34.8885}, {Lat: -8.0813, Lng: -34.8855},
				{Lat: -8.0798, Lng: -34.8825}, {Lat: -8.0783, Lng: -34.8795}, {Lat: -8.0758, Lng: -34.8815},
				{Lat: -8.0733, Lng: -34.8835}, {Lat: -8.0748, Lng: -34.8865}, {Lat: -8.0763, Lng: -34.8895},
				{Lat: -8.0778, Lng: -34.8925}, {Lat: -8.0793, Lng: -34.8955}, {Lat: -8.0818, Lng: -34.8935},
			},
			Vulnerability:  0.75,
			CriticalPoints: []string{"Av. Recife (próximo ao Ibura/Aeroporto)", "Av. Dois Rios (Ibura)", "Estrada do Barbalho"},
			Neighborhoods:  []string{"Ibura", "Jordão", "Boa Viagem", "Imbiribeira"},
			RiskType:       "encostas",
			Severity:       "media",
			FloodHistory:   22,
		},
		{
			ID:     "7",
			Name:   "Norte - Água Fria/Beberibe",
			Region: "Zona Norte",
			Polygon: []models.LatLng{
				{Lat: -8.0350, Lng: -34.8900}, {Lat: -8.0335, Lng: -34.8870}, {Lat: -8.0320, Lng: -34.8840},
				{Lat: -8.0305, Lng: -34.8810}, {Lat: -8.0290, Lng: -34.8780}, {Lat: -8.0265, Lng: -34.8800},
				{Lat: -8.0240, Lng: -34.8820}, {Lat: -8.0255, Lng: -34.8850}, {Lat: -8.0270, Lng: -34.8880},
				{Lat: -8.0285, Lng: -34.8910}, {Lat: -8.0300, Lng: -34.8940}, {Lat: -8.0325, Lng: -34.8920},
			},
			Vulnerability:  0.65,
			CriticalPoints: []string{"Av. Norte", "Rua do Futuro", "Estrada do Arraial"},
			Neighborhoods:  []string{"Água Fria", "Beberibe", "Arruda", "Campina do Barreto"},
			RiskType:       "drenagem_insuficiente",
			Severity:       "media",
			FloodHistory:   18,
		},
	}
}

// CriticalNeighborhoods lists neighborhoods with recurring flooding.
var CriticalNeighborhoods = []string{
	"Imbiribeira", "Ipsep", "Ibura", "Boa Viagem", "Pina", "Jordão",
	"Boa Vista", "Santo Amaro", "São José", "Santo Antônio", "Recife Antigo", "Paissandu",
	"Soledade", "Coelhos", "Derby", "Ilha do Leite", "Dois Irmãos", "Dois Unidos",
	"Alto do Mandu", "Macaxeira", "Água Fria", "Beberibe", "Arruda", "Campina do Barreto",
	"Várzea", "Afogados", "Encruzilhada", "Madalena", "Casa Amarela", "Torre",
	"Cordeiro", "Espinheiro", "Graças", "Parnamirim",
}

// RiskType describes a cause of flooding and the advice that goes with it.
type RiskType struct {
	Description    string `json:"description"`
	Context        string `json:"context"`
	Recommendation string `json:"recommendation"`
}

// RiskTypes is the catalog keyed by Area.RiskType.
var RiskTypes = map[string]RiskType{
	"sistema_drenagem_sobrecarregado": {
		Description:    "Sistema de drenagem sobrecarregado",
		Context:        "Infraestrutura incapaz de suportar volumes pluviométricos intensos",
		Recommendation: "Evitar deslocamentos durante chuvas fortes",
	},
	"impermeabilizacao_urbana": {
		Description:    "Alta impermeabilização do solo urbano",
		Context:        "Superfície asfáltica e construções impedem absorção da água",
		Recommendation: "Ficar alerta mesmo em chuvas moderadas",
	},
	"drenagem_insuficiente": {
		Description:    "Sistema de drenagem precário ou insuficiente",
		Context:        "Infraestrutura antiga ou inadequada para a demanda atual",
		Recommendation: "Evitar áreas baixas e próximas a canais",
	},
	"mare_alta": {
		Description:    "Influência de maré alta combinada com chuvas",
		Context:        "Maré alta impede escoamento da água das chuvas",
		Recommendation: "Consultar tabela de marés antes de deslocamentos",
	},
	"rio_capibaribe": {
		Description:    "Proximidade com Rio Capibaribe",
		Context:        "Risco de transbordamento em períodos de chuvas intensas",
		Recommendation: "Monitorar nível do rio durante temporada chuvosa",
	},
	"encostas": {
		Description:    "Áreas de encosta e morros",
		Context:        "Risco de deslizamentos e alagamentos rápidos",
		Recommendation: "Extrema cautela em dias de chuva forte",
	},
}
