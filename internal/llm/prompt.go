package llm

import "fmt"

// systemPrompt defines the assistant persona for open-ended generation.
const systemPrompt = `Eres 'Bedel', el asistente virtual de la universidad. Ayudas a estudiantes,
aspirantes y personal con consultas sobre la vida universitaria.

Tus propósitos:
1. Información académica: trámites (inscripciones, matrículas, certificados),
   horarios, calendario académico, programas ofrecidos y requisitos de admisión.
2. Soporte técnico básico: acceso a plataformas virtuales, correo institucional
   y red WiFi del campus.
3. Información general: ubicaciones, servicios al estudiante y contactos.
4. Si el usuario necesita asistencia humana, recuérdale que puede crear un
   ticket de soporte con el comando /ticket.

Comportamiento:
- Usa un español claro, amigable y respetuoso. Sé paciente.
- Si la pregunta es ambigua, pide amablemente más detalles. No asumas.
- No inventes información. Si no la tienes, dilo y sugiere consultar la página
  oficial o la oficina correspondiente.
- Mantén las respuestas concisas y bien formateadas para chat.
- Si se te proporciona contexto de la base de conocimiento, úsalo para
  responder la pregunta actual; no lo memorices para preguntas futuras.
- Recuerda los comandos /ayuda, /ticket y /reset_chat cuando sea apropiado.`

// classificationPrompt builds the single-shot intent extraction prompt.
func classificationPrompt(message string) string {
	return fmt.Sprintf(`Analiza el siguiente mensaje de un usuario de la universidad y determina su
intención principal y las entidades relevantes.

Intenciones posibles:
- CONSULTA_TRAMITE_ACADEMICO (ej: "¿cómo me inscribo?", "costo de la matrícula")
- CONSULTA_HORARIO (ej: "¿cuándo tengo clase de cálculo?", "horario de la biblioteca")
- CONSULTA_PROGRAMA_ACADEMICO (ej: "información sobre ingeniería de sistemas")
- SOLICITUD_SOPORTE_TECNICO (ej: "no puedo entrar a Moodle", "problemas con el wifi")
- INFORMACION_GENERAL (ej: "¿dónde queda la cafetería?", "teléfono de admisiones")
- GENERAR_TICKET_HUMANO (ej: "quiero hablar con una persona", "necesito un asesor")
- SALUDO
- DESPEDIDA
- AFIRMACION
- NEGACION
- CANCELAR_ACCION
- PREGUNTA_SOBRE_BOT (ej: "¿quién eres?", "¿qué puedes hacer?")
- DESCONOCIDO

Entidades a extraer cuando apliquen:
- Para CONSULTA_TRAMITE_ACADEMICO: "nombre_tramite".
- Para CONSULTA_HORARIO: "nombre_asignatura", "lugar".
- Para CONSULTA_PROGRAMA_ACADEMICO: "nombre_programa".
- Para SOLICITUD_SOPORTE_TECNICO: "descripcion_problema", "plataforma_afectada".
- Para GENERAR_TICKET_HUMANO: "resumen_solicitud_ticket" (breve resumen de lo que necesita).
- Para INFORMACION_GENERAL: "tema".

Mensaje del usuario: %q

Responde ÚNICAMENTE con JSON válido con las claves "intent" (string) y
"entities" (objeto de strings). Si no hay entidades, usa un objeto vacío.
Si la intención no encaja en las categorías, usa "DESCONOCIDO".`, message)
}
